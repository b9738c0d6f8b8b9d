// Package transcript assembles finalized conversation turns from the two
// incremental text streams the live channel delivers: one for the user's
// speech and one for the agent's synthesized reply.
package transcript

import (
	"strings"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one complete, attributed utterance. Immutable once emitted.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Assembler accumulates interleaved transcription fragments per speaker and
// flushes them into turns when the remote side signals turn completion.
// Fragments are concatenations of a single ongoing utterance, so no
// separators are inserted between them.
type Assembler struct {
	user  strings.Builder
	agent strings.Builder
	now   func() time.Time
}

// New creates an empty assembler stamping turns with time.Now.
func New() *Assembler {
	return &Assembler{now: time.Now}
}

// NewWithNow creates an assembler with an injected timestamp source.
func NewWithNow(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Append adds one fragment to the matching speaker's accumulator. Fragments
// for unknown speakers are dropped.
func (a *Assembler) Append(speaker Speaker, fragment string) {
	switch speaker {
	case SpeakerUser:
		a.user.WriteString(fragment)
	case SpeakerAgent:
		a.agent.WriteString(fragment)
	}
}

// Pending reports whether either accumulator holds unfinalized text.
func (a *Assembler) Pending() bool {
	return a.user.Len() > 0 || a.agent.Len() > 0
}

// CompleteTurn flushes the non-empty accumulators into turns, user before
// agent to match natural turn-taking, and clears both. A turn-complete with
// nothing accumulated (silence) yields no turns.
func (a *Assembler) CompleteTurn() []Turn {
	var turns []Turn
	ts := a.now()
	if a.user.Len() > 0 {
		turns = append(turns, Turn{Speaker: SpeakerUser, Text: a.user.String(), Timestamp: ts})
	}
	if a.agent.Len() > 0 {
		turns = append(turns, Turn{Speaker: SpeakerAgent, Text: a.agent.String(), Timestamp: ts})
	}
	a.user.Reset()
	a.agent.Reset()
	return turns
}

// UserTurns filters a finished transcript down to the user's side.
func UserTurns(turns []Turn) []Turn {
	var out []Turn
	for _, t := range turns {
		if t.Speaker == SpeakerUser {
			out = append(out, t)
		}
	}
	return out
}
