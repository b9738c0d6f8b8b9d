package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/session"
	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/internal/logging"
	"github.com/steveyiyo/voicecoach-backend/internal/metrics"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
	"github.com/steveyiyo/voicecoach-backend/pkg/ws"
)

const (
	readLimit    = 8 << 20
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// StreamHandler bridges one client websocket to one live session engine. The
// handler goroutine pumps inbound client frames into the engine; the engine
// pushes outbound frames back through a streamSink.
type StreamHandler struct {
	Hub      *ws.Hub
	Svc      *session.Service
	Upgrader websocket.Upgrader
}

func NewStreamHandler(h *ws.Hub, s *session.Service) *StreamHandler {
	return &StreamHandler{
		Hub: h,
		Svc: s,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) WS(c *gin.Context) {
	id := c.Query("sess")
	if id == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := ws.NewClient(conn)
	defer client.Close()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// The first frame declares the capture format. Anything the encoder
	// cannot accept is a device fault, reported once and never retried.
	var hello types.ClientHello
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		writeError(client, voice.CategoryDevice, "Expected a hello frame declaring the capture format.")
		return
	}
	if err := voice.ValidateCaptureFormat(hello); err != nil {
		logging.Sugar().Infow("capture format rejected", "session", id, "err", err)
		writeError(client, voice.CategoryDevice, voice.CategoryDevice.Message())
		return
	}

	sink := &streamSink{id: id, client: client, svc: h.Svc}
	sess, err := h.Svc.Attach(id, sink)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(client, voice.CategoryConnectivity, "Unknown session. Create one first.")
		case errors.Is(err, session.ErrAlreadyAttached):
			writeError(client, voice.CategoryConnectivity, "This session already has a live stream.")
		default:
			writeError(client, voice.CategoryConnectivity, voice.CategoryConnectivity.Message())
		}
		return
	}
	sink.sess = sess

	h.Hub.Add(id, client)
	defer func() {
		h.Hub.Remove(id)
		h.Svc.Detach(id)
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	go sess.Run(ctx)
	defer func() {
		// Cancel first so Run can exit before Close waits on teardown.
		cancel()
		sess.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		var frame types.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "audio":
			if _, err := audio.DecodeCapture(frame.Data); err != nil {
				// Skip the bad frame; the stream itself stays up.
				metrics.MalformedFrames.Inc()
				continue
			}
			sess.SendAudio(frame.Data)

		case "control_text":
			if err := sess.SendControlText(frame.Text); err != nil {
				logging.Sugar().Debugw("control text rejected", "session", id, "err", err)
			}

		case "language":
			if err := sess.SwitchLanguage(frame.Code); err != nil {
				logging.Sugar().Debugw("language switch rejected", "session", id, "err", err)
			}

		case "end":
			return

		default:
			// Unknown frame types are ignored so clients can evolve.
		}
	}
}

func writeError(c *ws.Client, category voice.ErrorCategory, message string) {
	_ = c.WriteJSON(types.ServerFrame{
		Type:     "error",
		TS:       time.Now().UnixMilli(),
		Category: string(category),
		Message:  message,
	})
}

// streamSink forwards engine output to the client websocket. PlayAudio is
// invoked from scheduler timers, everything else from the engine's dispatch
// goroutine; the ws.Client write lock serializes them.
type streamSink struct {
	id     string
	client *ws.Client
	svc    *session.Service
	sess   *voice.Session
}

func (s *streamSink) StateChanged(st voice.State) {
	_ = s.client.WriteJSON(types.ServerFrame{
		Type:  "state",
		TS:    time.Now().UnixMilli(),
		State: st.String(),
	})
}

func (s *streamSink) PlayAudio(f audio.Frame) {
	_ = s.client.WriteJSON(types.ServerFrame{
		Type:       "audio",
		TS:         time.Now().UnixMilli(),
		Data:       base64.StdEncoding.EncodeToString(f.Data),
		SampleRate: f.SampleRate,
	})
}

func (s *streamSink) Turn(t transcript.Turn) {
	_ = s.client.WriteJSON(types.ServerFrame{
		Type: "turn",
		TS:   time.Now().UnixMilli(),
		Turn: &t,
	})
}

func (s *streamSink) Interrupted() {
	_ = s.client.WriteJSON(types.ServerFrame{
		Type: "interrupted",
		TS:   time.Now().UnixMilli(),
	})
}

func (s *streamSink) Score(card scoring.Card, feedback string) {
	_ = s.client.WriteJSON(types.ServerFrame{
		Type:     "score",
		TS:       time.Now().UnixMilli(),
		Score:    &card,
		Feedback: feedback,
	})
	if s.sess != nil {
		s.svc.Finalize(s.id, types.HistoryItem{
			Turns:    s.sess.Turns(),
			Score:    card,
			Feedback: feedback,
		})
	}
}

func (s *streamSink) Fatal(category voice.ErrorCategory, message string) {
	writeError(s.client, category, message)
}
