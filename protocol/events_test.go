package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	pos := Point{X: 3, Y: 4}
	cases := []struct {
		name string
		ev   DrawingEvent
		want error
	}{
		{"partial", PartialStroke(1, "s1", []Point{{X: 0, Y: 0}}, "#000000", 5), nil},
		{"partial without points", PartialStroke(1, "s1", nil, "#000000", 5), nil},
		{"partial without stroke id", PartialStroke(1, "", []Point{{X: 0, Y: 0}}, "#000000", 5), ErrMissingStrokeID},
		{"stop", Stop("s1"), nil},
		{"stop without stroke id", Stop(""), ErrMissingStrokeID},
		{"fill", Fill(2, pos, "#ffffff"), nil},
		{"fill without position", DrawingEvent{Type: EventFill, Sequence: 2, Color: "#ffffff"}, ErrMissingPosition},
		{"clear", Clear(), nil},
		{"unknown", DrawingEvent{Type: "spray"}, ErrUnknownEventType},
		{"empty type", DrawingEvent{}, ErrUnknownEventType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.ev.Validate()
			if c.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestOrdered(t *testing.T) {
	cases := []struct {
		name string
		ev   DrawingEvent
		want bool
	}{
		{"partial with sequence", PartialStroke(1, "s1", nil, "#000000", 5), true},
		{"partial without sequence", PartialStroke(0, "s1", nil, "#000000", 5), false},
		{"fill with sequence", Fill(7, Point{}, "#000000"), true},
		{"fill without sequence", Fill(0, Point{}, "#000000"), false},
		{"stop", Stop("s1"), false},
		{"clear", Clear(), false},
		{"stop carrying a sequence", DrawingEvent{Type: EventStop, StrokeID: "s1", Sequence: 9}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.ev.Ordered(), c.name)
	}
}

func TestDecodeBatch(t *testing.T) {
	data := []byte(`[
		{"type":"partial-stroke","sequence":1,"strokeId":"s1","points":[{"x":0,"y":0},{"x":1,"y":1}],"color":"#000000","lineWidth":5},
		{"type":"stop","strokeId":"s1"},
		{"type":"fill","sequence":2,"position":{"x":10,"y":20},"color":"#fbee4e"},
		{"type":"clear"}
	]`)
	events, err := DecodeBatch(data)
	require.NoError(t, err)

	want := []DrawingEvent{
		PartialStroke(1, "s1", []Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, "#000000", 5),
		Stop("s1"),
		Fill(2, Point{X: 10, Y: 20}, "#fbee4e"),
		Clear(),
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("decoded batch mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeBatch([]byte(`{"type":"clear"}`))
	assert.Error(t, err, "a single object is not a batch")
	_, err = DecodeBatch([]byte(`[{"type":`))
	assert.Error(t, err)
}

func TestEncodeBatchOmitsEmptyFields(t *testing.T) {
	data, err := EncodeBatch([]DrawingEvent{Stop("s1"), Clear()})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"stop","strokeId":"s1"},{"type":"clear"}]`, string(data))
}

func TestSplitDestination(t *testing.T) {
	cases := []struct {
		dest   string
		action string
		lobby  string
		ok     bool
	}{
		{DrawingDestination("1"), "drawing", "1", true},
		{GuessDestination("42"), "game-state.guess", "42", true},
		{StartDestination("a"), "game-state.start", "a", true},
		{DrawerAckDestination("7"), "game-state.drawer-ack", "7", true},
		{"/app/drawing/", "", "", false},
		{"/app//1", "", "", false},
		{"/app/drawing", "", "", false},
		{"/topic/lobby/1/drawing", "", "", false},
		{"", "", "", false},
	}
	for _, c := range cases {
		action, lobby, ok := SplitDestination(c.dest)
		assert.Equal(t, c.ok, ok, c.dest)
		assert.Equal(t, c.action, action, c.dest)
		assert.Equal(t, c.lobby, lobby, c.dest)
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "/topic/lobby/1/drawing", DrawingTopic("1"))
	assert.Equal(t, "/topic/lobby/1/game-state", GameStateTopic("1"))
	assert.Equal(t, "/topic/lobby/1/guess", GuessTopic("1"))
}
