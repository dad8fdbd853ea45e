package game

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func battleState() *State {
	return &State{
		FrameID: 7,
		Game: GameInfo{
			InBattle: true,
			BattleInfo: &BattleInfo{
				PlayerPokemon:   &BattlePokemon{SpeciesName: "Treecko", Level: 7, CurrentHP: 20, MaxHP: 24},
				OpponentPokemon: &BattlePokemon{Species: "POOCHYENA", Level: 3, CurrentHP: 11, MaxHP: 14},
			},
		},
		Player: PlayerInfo{
			Name:     "MAY",
			Location: "Route 101",
			Position: &Position{X: 10, Y: 4},
			Party: []PartyMember{
				{SpeciesName: "Treecko", Level: 7, CurrentHP: 20, MaxHP: 24},
			},
		},
	}
}

// =============================================================================
// Buttons
// =============================================================================

func TestParseButton(t *testing.T) {
	tests := []struct {
		in      string
		want    Button
		wantErr bool
	}{
		{"a", ButtonA, false},
		{"  up ", ButtonUp, false},
		{"START", ButtonStart, false},
		{"select", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseButton(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidButton, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestJoinButtons(t *testing.T) {
	assert.Equal(t, "UP, UP, A", JoinButtons([]Button{ButtonUp, ButtonUp, ButtonA}))
	assert.Equal(t, "", JoinButtons(nil))
}

// =============================================================================
// JSON
// =============================================================================

func TestStateUnmarshal(t *testing.T) {
	raw := `{
		"frame_id": 42,
		"screenshot_base64": "iVBORw==",
		"game": {"in_battle": true, "battle_info": {"player_pokemon": {"species_name": "Mudkip", "level": 5, "current_hp": 3, "max_hp": 20}}},
		"player": {"location": "Littleroot Town", "party": [{"species_name": "Mudkip", "level": 5, "current_hp": 3, "max_hp": 20}]}
	}`

	var s State
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, int64(42), s.FrameID)
	require.NotNil(t, s.Frame)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, s.Frame.Data)
	assert.Equal(t, DefaultFrameMIME, s.Frame.MIME())
	assert.True(t, s.Game.InBattle)
	assert.Equal(t, "Mudkip", s.Game.BattleInfo.PlayerPokemon.Name())
	assert.Len(t, s.Player.Party, 1)
}

func TestStateUnmarshal_MissingFrameID(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`{"game": {"in_battle": false}}`), &s))
	assert.Equal(t, int64(-1), s.FrameID)
	assert.Nil(t, s.Frame)
}

func TestStateUnmarshal_BadScreenshot(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{"screenshot_base64": "!!!"}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot")
}

func TestStateMarshal_IncludesFrame(t *testing.T) {
	s := battleState()
	s.Frame = &Frame{Data: []byte("png"), MIMEType: "image/png"}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Frame)
	assert.Equal(t, []byte("png"), back.Frame.Data)
	assert.Equal(t, s.FrameID, back.FrameID)
	assert.Equal(t, "Route 101", back.Player.Location)
}

// =============================================================================
// DefaultFormatter
// =============================================================================

func TestFormatFull_Battle(t *testing.T) {
	out := NewDefaultFormatter().FormatFull(battleState())

	assert.Contains(t, out, "Location: Route 101")
	assert.Contains(t, out, "Position: (10, 4)")
	assert.Contains(t, out, "=== BATTLE ===")
	assert.Contains(t, out, "Your Pokemon: Treecko (Lv.7) HP: 20/24")
	assert.Contains(t, out, "Opponent: POOCHYENA (Lv.3) HP: 11/14")
}

func TestBattlePokemonDescribe(t *testing.T) {
	p := &BattlePokemon{Species: "WURMPLE", Level: 4, CurrentHP: 9, MaxHP: 15}
	assert.Equal(t, "WURMPLE (Lv.4) HP: 9/15", p.Describe())

	var missing *BattlePokemon
	assert.Equal(t, "Unknown", missing.Describe())
}

func TestFormatFull_DegradesOnMissingFields(t *testing.T) {
	f := NewDefaultFormatter()

	assert.Equal(t, "No game state available.", f.FormatFull(nil))

	out := f.FormatFull(&State{Game: GameInfo{InBattle: true}})
	assert.Contains(t, out, "=== BATTLE ===")
	assert.NotContains(t, out, "Your Pokemon")
}

func TestFormatSummary(t *testing.T) {
	f := NewDefaultFormatter()

	got := f.FormatSummary(battleState())
	assert.Equal(t, "Location: Route 101 | Pos: (10, 4) | In battle | Party: 1/1 healthy", got)
	assert.Equal(t, "unknown state", f.FormatSummary(&State{}))
}

func TestMovementOptions(t *testing.T) {
	s := &State{Map: MapInfo{Tiles: [][]string{
		{"#", "D", "#"},
		{"G", "P", "."},
		{"#", "~", "#"},
	}}}

	opts := NewDefaultFormatter().MovementOptions(s)
	require.Len(t, opts, 4)
	assert.Equal(t, Movement{ButtonUp, "Door/Entrance"}, opts[0])
	assert.Equal(t, Movement{ButtonDown, "Water (requires Surf)"}, opts[1])
	assert.Equal(t, Movement{ButtonLeft, "Tall grass (wild encounters)"}, opts[2])
	assert.Equal(t, Movement{ButtonRight, "Normal path"}, opts[3])
}

func TestMovementOptions_EdgeOfGrid(t *testing.T) {
	s := &State{Map: MapInfo{Tiles: [][]string{{"P", "x"}}}}

	opts := NewDefaultFormatter().MovementOptions(s)
	require.Len(t, opts, 1)
	assert.Equal(t, ButtonLeft, opts[0].Direction)
	assert.Equal(t, "P", opts[0].Description)

	assert.Nil(t, NewDefaultFormatter().MovementOptions(&State{}))
}

func TestPartyHealth(t *testing.T) {
	s := &State{Player: PlayerInfo{Party: []PartyMember{
		{SpeciesName: "Torchic", Level: 9, CurrentHP: 30, MaxHP: 30},
		{SpeciesName: "Wurmple", Level: 4, CurrentHP: 2, MaxHP: 16},
		{SpeciesName: "Zigzagoon", Level: 3, CurrentHP: 0, MaxHP: 15},
	}}}

	health := NewDefaultFormatter().PartyHealth(s)
	assert.Equal(t, 3, health.Total)
	assert.Equal(t, 2, health.Healthy)
	require.Len(t, health.Critical, 2)
	assert.True(t, strings.Contains(health.Critical[0], "Wurmple"))
	assert.True(t, strings.Contains(health.Critical[1], "FAINTED"))

	empty := NewDefaultFormatter().PartyHealth(&State{})
	assert.Zero(t, empty.Total)
}
