package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/internal/repo/memory"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

type nopSink struct{}

func (nopSink) StateChanged(voice.State)         {}
func (nopSink) PlayAudio(audio.Frame)            {}
func (nopSink) Turn(transcript.Turn)             {}
func (nopSink) Interrupted()                     {}
func (nopSink) Score(scoring.Card, string)       {}
func (nopSink) Fatal(voice.ErrorCategory, string) {}

func persona() types.PersonaConfig {
	return types.PersonaConfig{Name: "Maya", Role: "hiring manager", Mood: "skeptical"}
}

func TestCreateAssignsIDAndStoresRecord(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, voice.Config{})

	rec, err := svc.Create("alice", persona())
	require.NoError(t, err)
	assert.Contains(t, rec.ID, "sess_")

	got, ok := svc.Repo.GetSession(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "Maya", got.Persona.Name)
}

func TestCreateRejectedByQuota(t *testing.T) {
	svc := NewService(memory.NewStore(), quota.NewMemoryMeter(1, 0), voice.Config{})

	_, err := svc.Create("alice", persona())
	require.NoError(t, err)
	_, err = svc.Create("alice", persona())
	assert.ErrorIs(t, err, quota.ErrExceeded)
}

func TestAttachIsExclusive(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, voice.Config{})
	rec, err := svc.Create("alice", persona())
	require.NoError(t, err)

	_, err = svc.Attach(rec.ID, nopSink{})
	require.NoError(t, err)

	_, err = svc.Attach(rec.ID, nopSink{})
	assert.ErrorIs(t, err, ErrAlreadyAttached)

	_, err = svc.Attach("sess_missing", nopSink{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummaryBeforeAndAfterAttach(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, voice.Config{})
	rec, err := svc.Create("alice", persona())
	require.NoError(t, err)

	sum, ok := svc.Summary(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "created", sum.State)

	_, err = svc.Attach(rec.ID, nopSink{})
	require.NoError(t, err)

	sum, ok = svc.Summary(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "connecting", sum.State)

	_, ok = svc.Summary("sess_missing")
	assert.False(t, ok)
}

func TestFinalizeWritesHistory(t *testing.T) {
	svc := NewService(memory.NewStore(), nil, voice.Config{})
	rec, err := svc.Create("alice", persona())
	require.NoError(t, err)

	svc.Finalize(rec.ID, types.HistoryItem{
		Turns: []transcript.Turn{{Speaker: transcript.SpeakerUser, Text: "hello"}},
		Score: scoring.Card{OverallScore: 80},
	})

	items := svc.Repo.History("alice")
	require.Len(t, items, 1)
	assert.Contains(t, items[0].ID, "hist_")
	assert.Equal(t, "Maya", items[0].Persona.Name)
	assert.Equal(t, 80, items[0].Score.OverallScore)
	assert.False(t, items[0].Date.IsZero())
}
