package game

import (
	"fmt"
	"strings"
)

// Formatter renders a snapshot into the text views the stages put in prompts.
type Formatter interface {
	// FormatFull returns the detailed context block.
	FormatFull(s *State) string
	// FormatSummary returns a one-line summary for logs.
	FormatSummary(s *State) string
	// MovementOptions describes what lies in each direction from the player.
	MovementOptions(s *State) []Movement
	// PartyHealth counts healthy party members and lists critical ones.
	PartyHealth(s *State) PartyHealth
}

// Movement is one direction and what moving that way would do.
type Movement struct {
	Direction   Button
	Description string
}

// PartyHealth summarizes the party's condition.
type PartyHealth struct {
	Healthy  int
	Total    int
	Critical []string
}

// criticalHPRatio is the HP fraction below which a member is listed as critical.
const criticalHPRatio = 0.25

// Tile codes understood by DefaultFormatter.
var tileDescriptions = map[string]string{
	".": "Normal path",
	"#": "BLOCKED",
	"~": "Water (requires Surf)",
	"G": "Tall grass (wild encounters)",
	"D": "Door/Entrance",
	"N": "NPC (blocked, interact with A)",
	"S": "Stairs/Warp",
	"L": "Ledge (one-way)",
}

// DefaultFormatter renders snapshots from their structured fields. Missing
// fields are skipped rather than reported.
type DefaultFormatter struct{}

// NewDefaultFormatter returns a DefaultFormatter.
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// FormatFull implements Formatter.
func (f *DefaultFormatter) FormatFull(s *State) string {
	if s == nil {
		return "No game state available."
	}

	var sb strings.Builder

	sb.WriteString("=== PLAYER ===\n")
	if s.Player.Name != "" {
		fmt.Fprintf(&sb, "Name: %s\n", s.Player.Name)
	}
	if s.Player.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", s.Player.Location)
	}
	if s.Player.Position != nil {
		fmt.Fprintf(&sb, "Position: (%d, %d)\n", s.Player.Position.X, s.Player.Position.Y)
	}
	if s.Player.Facing != "" {
		fmt.Fprintf(&sb, "Facing: %s\n", s.Player.Facing)
	}
	if s.Game.Money > 0 {
		fmt.Fprintf(&sb, "Money: $%d\n", s.Game.Money)
	}
	if len(s.Game.Badges) > 0 {
		fmt.Fprintf(&sb, "Badges: %s\n", strings.Join(s.Game.Badges, ", "))
	}

	if len(s.Player.Party) > 0 {
		sb.WriteString("\n=== PARTY ===\n")
		for i, p := range s.Player.Party {
			fmt.Fprintf(&sb, "%d. %s (Lv.%d) HP: %d/%d", i+1, p.SpeciesName, p.Level, p.CurrentHP, p.MaxHP)
			if p.Status != "" {
				fmt.Fprintf(&sb, " [%s]", p.Status)
			}
			sb.WriteString("\n")
		}
	}

	if s.Game.InBattle {
		sb.WriteString("\n=== BATTLE ===\n")
		if bi := s.Game.BattleInfo; bi != nil {
			if bi.PlayerPokemon != nil {
				fmt.Fprintf(&sb, "Your Pokemon: %s\n", bi.PlayerPokemon.Describe())
			}
			if bi.OpponentPokemon != nil {
				fmt.Fprintf(&sb, "Opponent: %s\n", bi.OpponentPokemon.Describe())
			}
		}
	}

	if s.Game.Dialogue != "" {
		sb.WriteString("\n=== DIALOGUE ===\n")
		sb.WriteString(strings.TrimSpace(s.Game.Dialogue))
		sb.WriteString("\n")
	}

	if len(s.Map.Tiles) > 0 {
		sb.WriteString("\n=== MAP ===\n")
		if s.Map.Name != "" {
			fmt.Fprintf(&sb, "Map: %s\n", s.Map.Name)
		}
		for _, row := range s.Map.Tiles {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString("\n")
		}
		sb.WriteString("Legend: . path, # blocked, ~ water, G grass, D door, N npc, S stairs, L ledge\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatSummary implements Formatter.
func (f *DefaultFormatter) FormatSummary(s *State) string {
	if s == nil {
		return "no state"
	}

	parts := []string{}
	if s.Player.Location != "" {
		parts = append(parts, "Location: "+s.Player.Location)
	}
	if s.Player.Position != nil {
		parts = append(parts, fmt.Sprintf("Pos: (%d, %d)", s.Player.Position.X, s.Player.Position.Y))
	}
	if s.Game.InBattle {
		parts = append(parts, "In battle")
	} else if s.Game.GameState != "" {
		parts = append(parts, "Mode: "+s.Game.GameState)
	}
	if health := f.PartyHealth(s); health.Total > 0 {
		parts = append(parts, fmt.Sprintf("Party: %d/%d healthy", health.Healthy, health.Total))
	}
	if len(parts) == 0 {
		return "unknown state"
	}
	return strings.Join(parts, " | ")
}

// MovementOptions implements Formatter. The player stands at the center of
// the tile grid; directions whose neighbor is outside the grid are omitted.
func (f *DefaultFormatter) MovementOptions(s *State) []Movement {
	if s == nil || len(s.Map.Tiles) == 0 {
		return nil
	}

	tiles := s.Map.Tiles
	cy := len(tiles) / 2
	if len(tiles[cy]) == 0 {
		return nil
	}
	cx := len(tiles[cy]) / 2

	neighbors := []struct {
		dir    Button
		dx, dy int
	}{
		{ButtonUp, 0, -1},
		{ButtonDown, 0, 1},
		{ButtonLeft, -1, 0},
		{ButtonRight, 1, 0},
	}

	var opts []Movement
	for _, n := range neighbors {
		y, x := cy+n.dy, cx+n.dx
		if y < 0 || y >= len(tiles) || x < 0 || x >= len(tiles[y]) {
			continue
		}
		opts = append(opts, Movement{Direction: n.dir, Description: describeTile(tiles[y][x])})
	}
	return opts
}

// PartyHealth implements Formatter.
func (f *DefaultFormatter) PartyHealth(s *State) PartyHealth {
	var health PartyHealth
	if s == nil {
		return health
	}

	for _, p := range s.Player.Party {
		health.Total++
		switch {
		case p.CurrentHP <= 0:
			health.Critical = append(health.Critical, fmt.Sprintf("%s (Lv.%d) - FAINTED", p.SpeciesName, p.Level))
		case p.MaxHP > 0 && float64(p.CurrentHP)/float64(p.MaxHP) < criticalHPRatio:
			health.Healthy++
			health.Critical = append(health.Critical, fmt.Sprintf("%s (Lv.%d) - HP: %d/%d", p.SpeciesName, p.Level, p.CurrentHP, p.MaxHP))
		default:
			health.Healthy++
		}
	}
	return health
}

func describeTile(tile string) string {
	tile = strings.TrimSpace(tile)
	if desc, ok := tileDescriptions[tile]; ok {
		return desc
	}
	if tile == "" {
		return "Unknown"
	}
	return tile
}
