// Package agent owns the bidirectional live channel to the remote
// conversational model for the lifetime of one voice session.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/logging"
	"github.com/steveyiyo/voicecoach-backend/internal/metrics"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	handshakeTimeout = 15 * time.Second

	// sendQueueSize bounds outbound buffering. Audio frames beyond this are
	// dropped rather than queued; a backlog only adds perceived latency.
	sendQueueSize = 64
)

var (
	// ErrHandshake indicates the channel could not be established.
	ErrHandshake = errors.New("agent: channel handshake failed")
	// ErrSendDropped indicates one outbound audio frame was discarded
	// because the send queue was full or the channel is down.
	ErrSendDropped = errors.New("agent: outbound frame dropped")
	// ErrClosed indicates the session is no longer usable.
	ErrClosed = errors.New("agent: session closed")
)

// Config parameterizes one live channel.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Persona  types.PersonaConfig
}

// Session is one open live channel. Exactly one consumer reads Events().
type Session struct {
	conn *websocket.Conn

	sendCh chan []byte
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
}

// Dial establishes the channel, sends the configuration frame describing the
// persona, and waits for the remote side to acknowledge setup. Audio replies
// and both transcription streams are requested up front; the assembler needs
// separate streams to attribute speakers in real time.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	url := endpoint + "?key=" + cfg.APIKey

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, handshakeTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial status %d: %v", ErrHandshake, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	setup := setupMessage{Setup: setupPayload{
		Model:            "models/" + cfg.Model,
		GenerationConfig: generationConfig{ResponseModalities: []string{"AUDIO"}},
		SystemInstruction: &wireContent{
			Parts: []textPart{{Text: BuildSystemInstruction(cfg.Persona)}},
		},
	}}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: send setup: %v", ErrHandshake, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, first, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: read setup ack: %v", ErrHandshake, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var ack serverMessage
	if err := json.Unmarshal(first, &ack); err != nil || ack.SetupComplete == nil {
		conn.Close()
		if ack.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrHandshake, ack.Error.Message)
		}
		return nil, fmt.Errorf("%w: unexpected first frame", ErrHandshake)
	}

	s := &Session{
		conn:   conn,
		sendCh: make(chan []byte, sendQueueSize),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s, nil
}

// Events yields inbound channel events. The channel ends with exactly one
// Closed event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// SendAudio queues one encoded capture frame, best effort. A full queue or a
// closed session drops the frame; the capture loop must never block on the
// network.
func (s *Session) SendAudio(data string) error {
	if s.closed.Load() {
		return ErrSendDropped
	}
	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		Audio: &blob{MIMEType: fmt.Sprintf("audio/pcm;rate=%d", audio.CaptureRate), Data: data},
	}}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendDropped, err)
	}
	select {
	case s.sendCh <- payload:
		return nil
	default:
		metrics.FramesDropped.Inc()
		return ErrSendDropped
	}
}

// SendControlText injects an out-of-band instruction without interrupting the
// audio stream. Unlike audio frames it is never silently dropped.
func (s *Session) SendControlText(text string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	msg := clientContentMessage{ClientContent: clientContent{
		Turns:        []wireContent{{Role: "user", Parts: []textPart{{Text: text}}}},
		TurnComplete: true,
	}}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.sendCh <- payload:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(Closed{})
			} else {
				s.emit(Closed{Err: err})
			}
			return
		}
		events, err := decodeServerMessage(data)
		if err != nil {
			// One undecodable frame is not fatal; skip it.
			logging.Sugar().Debugw("skipping undecodable server frame", "err", err)
			metrics.MalformedFrames.Inc()
			continue
		}
		for _, ev := range events {
			s.emit(ev)
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case payload := <-s.sendCh:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Sugar().Debugw("live channel write failed", "err", err)
				metrics.FramesDropped.Inc()
			}
		case <-s.done:
			return
		}
	}
}

// Close tears the channel down. Idempotent and safe to call from any
// goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		deadline := time.Now().Add(2 * time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	return nil
}
