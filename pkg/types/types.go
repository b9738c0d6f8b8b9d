package types

import (
	"time"

	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
)

// PersonaConfig describes the identity the remote agent embodies for one
// session. Difficulty scales the persona's strictness from 1 (gentle) to 10
// (demanding).
type PersonaConfig struct {
	Name       string `json:"name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Mood       string `json:"mood"`
	Language   string `json:"language"`
	Difficulty int    `json:"difficulty"`
	Premium    bool   `json:"premium"`
}

type CreateSessionReq struct {
	UserID  string        `json:"user_id" binding:"required"`
	Persona PersonaConfig `json:"persona" binding:"required"`
}

type CreateSessionResp struct {
	SessionID string `json:"session_id"`
	WSURL     string `json:"ws_url"`
}

// ClientHello is the first frame on the client stream leg, declaring the
// capture format the browser will send.
type ClientHello struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// ClientFrame is any subsequent inbound frame on the client stream leg.
type ClientFrame struct {
	Type string `json:"type"` // audio | control_text | language | end
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
	Code string `json:"code,omitempty"`
}

// ServerFrame is an outbound frame on the client stream leg.
type ServerFrame struct {
	Type       string           `json:"type"` // state | audio | turn | interrupted | score | error
	TS         int64            `json:"ts"`
	State      string           `json:"state,omitempty"`
	Data       string           `json:"data,omitempty"`
	SampleRate int              `json:"sample_rate,omitempty"`
	Turn       *transcript.Turn `json:"turn,omitempty"`
	Score      *scoring.Card    `json:"score,omitempty"`
	Feedback   string           `json:"feedback,omitempty"`
	Category   string           `json:"category,omitempty"`
	Message    string           `json:"message,omitempty"`
}

type SummaryResp struct {
	SessionID      string `json:"session_id"`
	State          string `json:"state"`
	FramesSent     int64  `json:"frames_sent"`
	FramesReceived int64  `json:"frames_received"`
	Turns          int    `json:"turns"`
	StartedAt      int64  `json:"started_at"`
}

type ScoreReq struct {
	Turns []transcript.Turn `json:"turns" binding:"required"`
}

// HistoryItem is one persisted conversation with its score card. The history
// store assigns ID and Date; the engine only produces turns and the card.
type HistoryItem struct {
	ID       string            `json:"id"`
	Date     time.Time         `json:"date"`
	Persona  PersonaConfig     `json:"persona"`
	Turns    []transcript.Turn `json:"turns"`
	Score    scoring.Card      `json:"score"`
	Feedback string            `json:"feedback,omitempty"`
}
