// Package game defines the state snapshot the agent consumes, the button
// vocabulary it emits, and the formatter that renders state for prompts.
package game

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Button is a single discrete input token.
type Button string

const (
	ButtonA     Button = "A"
	ButtonB     Button = "B"
	ButtonUp    Button = "UP"
	ButtonDown  Button = "DOWN"
	ButtonLeft  Button = "LEFT"
	ButtonRight Button = "RIGHT"
	ButtonStart Button = "START"
)

// ValidButtons lists every token the agent may emit, in prompt order.
var ValidButtons = []Button{ButtonA, ButtonB, ButtonUp, ButtonDown, ButtonLeft, ButtonRight, ButtonStart}

// ErrInvalidButton is returned by ParseButton for tokens outside ValidButtons.
var ErrInvalidButton = errors.New("invalid button")

// ParseButton normalizes s (trim + uppercase) and validates it.
func ParseButton(s string) (Button, error) {
	b := Button(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidButtons {
		if b == v {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidButton, s)
}

// JoinButtons renders a batch as "UP, UP, A".
func JoinButtons(buttons []Button) string {
	parts := make([]string, len(buttons))
	for i, b := range buttons {
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}

// Frame is an encoded screenshot.
type Frame struct {
	Data     []byte
	MIMEType string
}

// DefaultFrameMIME is assumed when a frame carries no type.
const DefaultFrameMIME = "image/png"

// MIME returns the frame's MIME type, defaulting to PNG.
func (f *Frame) MIME() string {
	if f == nil || f.MIMEType == "" {
		return DefaultFrameMIME
	}
	return f.MIMEType
}

// Base64 returns the frame data base64-encoded.
func (f *Frame) Base64() string {
	if f == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(f.Data)
}

// State is one snapshot of the game as produced by the state source.
type State struct {
	FrameID  int64       `json:"frame_id"`
	Frame    *Frame      `json:"-"`
	Game     GameInfo    `json:"game"`
	Player   PlayerInfo  `json:"player"`
	Map      MapInfo     `json:"map"`
	Progress interface{} `json:"progress,omitempty"`
}

// GameInfo carries mode flags and battle details.
type GameInfo struct {
	InBattle   bool        `json:"in_battle"`
	BattleInfo *BattleInfo `json:"battle_info,omitempty"`
	Dialogue   string      `json:"dialogue_text,omitempty"`
	GameState  string      `json:"game_state,omitempty"` // e.g. "overworld", "menu", "title"
	Money      int         `json:"money,omitempty"`
	Badges     []string    `json:"badges,omitempty"`
}

// BattleInfo summarizes both active combatants.
type BattleInfo struct {
	PlayerPokemon   *BattlePokemon `json:"player_pokemon,omitempty"`
	OpponentPokemon *BattlePokemon `json:"opponent_pokemon,omitempty"`
}

// BattlePokemon is a combatant summary.
type BattlePokemon struct {
	Species     string `json:"species,omitempty"`
	SpeciesName string `json:"species_name,omitempty"`
	Level       int    `json:"level"`
	CurrentHP   int    `json:"current_hp"`
	MaxHP       int    `json:"max_hp"`
}

// Describe renders the combatant as "NAME (Lv.5) HP: 12/20".
func (p *BattlePokemon) Describe() string {
	if p == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%s (Lv.%d) HP: %d/%d", p.Name(), p.Level, p.CurrentHP, p.MaxHP)
}

// Name prefers the display name, then the species id, then "Unknown".
func (p *BattlePokemon) Name() string {
	switch {
	case p == nil:
		return "Unknown"
	case p.SpeciesName != "":
		return p.SpeciesName
	case p.Species != "":
		return p.Species
	default:
		return "Unknown"
	}
}

// PlayerInfo carries the trainer's position and party.
type PlayerInfo struct {
	Name     string        `json:"name,omitempty"`
	Location string        `json:"location,omitempty"`
	Position *Position     `json:"position,omitempty"`
	Facing   string        `json:"facing,omitempty"`
	Party    []PartyMember `json:"party,omitempty"`
}

// Position is a map coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PartyMember is one Pokémon in the party.
type PartyMember struct {
	SpeciesName string `json:"species_name"`
	Level       int    `json:"level"`
	CurrentHP   int    `json:"current_hp"`
	MaxHP       int    `json:"max_hp"`
	Status      string `json:"status,omitempty"`
}

// MapInfo carries the tiles around the player. Tiles is row-major with the
// player at the center cell; each cell is a short tile description.
type MapInfo struct {
	Name  string     `json:"name,omitempty"`
	Tiles [][]string `json:"tiles,omitempty"`
}

// UnmarshalJSON decodes a snapshot, including an optional base64 screenshot.
// A missing frame_id decodes as -1.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	wire := struct {
		*plain
		FrameID        *int64 `json:"frame_id"`
		Screenshot     string `json:"screenshot_base64,omitempty"`
		ScreenshotMIME string `json:"screenshot_mime,omitempty"`
	}{plain: (*plain)(s)}

	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	s.FrameID = -1
	if wire.FrameID != nil {
		s.FrameID = *wire.FrameID
	}

	s.Frame = nil
	if wire.Screenshot != "" {
		raw, err := base64.StdEncoding.DecodeString(wire.Screenshot)
		if err != nil {
			return fmt.Errorf("failed to decode screenshot: %w", err)
		}
		s.Frame = &Frame{Data: raw, MIMEType: wire.ScreenshotMIME}
	}
	return nil
}

// MarshalJSON encodes a snapshot with its frame as base64.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	wire := struct {
		plain
		Screenshot     string `json:"screenshot_base64,omitempty"`
		ScreenshotMIME string `json:"screenshot_mime,omitempty"`
	}{plain: plain(s)}
	if s.Frame != nil {
		wire.Screenshot = s.Frame.Base64()
		wire.ScreenshotMIME = s.Frame.MIMEType
	}
	return json.Marshal(wire)
}
