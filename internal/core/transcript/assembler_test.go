package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterleavedFragmentsFlushUserThenAgent(t *testing.T) {
	a := New()
	a.Append(SpeakerUser, "I led ")
	a.Append(SpeakerAgent, "Tell me ")
	a.Append(SpeakerUser, "the migration.")
	a.Append(SpeakerAgent, "more about that.")

	turns := a.CompleteTurn()
	require.Len(t, turns, 2)
	assert.Equal(t, SpeakerUser, turns[0].Speaker)
	assert.Equal(t, "I led the migration.", turns[0].Text)
	assert.Equal(t, SpeakerAgent, turns[1].Speaker)
	assert.Equal(t, "Tell me more about that.", turns[1].Text)

	assert.False(t, a.Pending(), "accumulators must be empty after turn complete")
	assert.Empty(t, a.CompleteTurn())
}

func TestAgentOnlyTurn(t *testing.T) {
	a := New()
	a.Append(SpeakerAgent, "Welcome! Let's begin.")

	turns := a.CompleteTurn()
	require.Len(t, turns, 1)
	assert.Equal(t, SpeakerAgent, turns[0].Speaker)
}

func TestSilentTurnCompleteEmitsNothing(t *testing.T) {
	a := New()
	assert.Empty(t, a.CompleteTurn())
}

func TestUnknownSpeakerFragmentDropped(t *testing.T) {
	a := New()
	a.Append(Speaker("system"), "ignored")
	assert.False(t, a.Pending())
}

func TestTurnsShareOneTimestampPerFlush(t *testing.T) {
	ts := time.Unix(42, 0)
	a := NewWithNow(func() time.Time { return ts })
	a.Append(SpeakerUser, "hi")
	a.Append(SpeakerAgent, "hello")

	turns := a.CompleteTurn()
	require.Len(t, turns, 2)
	assert.Equal(t, ts, turns[0].Timestamp)
	assert.Equal(t, ts, turns[1].Timestamp)
}

func TestUserTurnsFilter(t *testing.T) {
	turns := []Turn{
		{Speaker: SpeakerUser, Text: "one"},
		{Speaker: SpeakerAgent, Text: "two"},
		{Speaker: SpeakerUser, Text: "three"},
	}
	users := UserTurns(turns)
	require.Len(t, users, 2)
	assert.Equal(t, "one", users[0].Text)
	assert.Equal(t, "three", users[1].Text)
}
