package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyiyo/voicecoach-backend/internal/core/agent"
	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/session"
	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/internal/core/voice"
	"github.com/steveyiyo/voicecoach-backend/internal/repo/memory"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
	"github.com/steveyiyo/voicecoach-backend/pkg/ws"
)

type fakeTransport struct {
	events    chan agent.Event
	closeOnce sync.Once
}

func (f *fakeTransport) Events() <-chan agent.Event   { return f.events }
func (f *fakeTransport) SendAudio(string) error       { return nil }
func (f *fakeTransport) SendControlText(string) error { return nil }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

type fixture struct {
	router *gin.Engine
	repo   *memory.Store
	svc    *session.Service
}

// newFixture wires the real handler stack around a scripted agent channel.
func newFixture(t *testing.T, gate quota.Gate, events []agent.Event) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tr := &fakeTransport{events: make(chan agent.Event, len(events)+1)}
	for _, ev := range events {
		tr.events <- ev
	}

	engineCfg := voice.Config{
		Dial: func(ctx context.Context, cfg agent.Config) (voice.Transport, error) {
			return tr, nil
		},
	}
	repo := memory.NewStore()
	svc := session.NewService(repo, gate, engineCfg)

	sh := NewSessionsHandler(svc, "http", "example.test")
	wsh := NewStreamHandler(ws.NewHub(), svc)
	hh := NewHistoryHandler(repo)
	sch := NewScoreHandler(scoring.DefaultConfig())

	r := gin.New()
	api := r.Group("/v1")
	api.POST("/sessions", sh.Create)
	api.GET("/sessions/:id/summary", sh.Summary)
	api.GET("/history", hh.List)
	api.POST("/score", sch.Score)
	r.GET("/v1/stream", wsh.WS)

	return &fixture{router: r, repo: repo, svc: svc}
}

func createSession(t *testing.T, f *fixture, userID string) types.CreateSessionResp {
	t.Helper()
	body, _ := json.Marshal(types.CreateSessionReq{
		UserID: userID,
		Persona: types.PersonaConfig{
			Name: "Maya", Role: "hiring manager", Mood: "skeptical",
		},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.CreateSessionResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateSessionReturnsStreamURL(t *testing.T) {
	f := newFixture(t, nil, nil)
	resp := createSession(t, f, "alice")
	assert.Contains(t, resp.SessionID, "sess_")
	assert.Equal(t, "ws://example.test/v1/stream?sess="+resp.SessionID, resp.WSURL)
}

func TestCreateSessionQuotaExceeded(t *testing.T) {
	f := newFixture(t, quota.NewMemoryMeter(1, 0), nil)
	createSession(t, f, "alice")

	body, _ := json.Marshal(types.CreateSessionReq{
		UserID:  "alice",
		Persona: types.PersonaConfig{Name: "Maya", Role: "hiring manager"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "entitlement")
}

func TestCreateSessionRejectsMissingFields(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"user_id":"alice"}`))
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreEndpointScoresTranscript(t *testing.T) {
	f := newFixture(t, nil, nil)
	body, _ := json.Marshal(types.ScoreReq{Turns: []transcript.Turn{
		{Speaker: transcript.SpeakerUser, Text: "I led the migration and shipped it on time."},
	}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewReader(body))
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var card scoring.Card
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, 100.0, card.ConfidenceScore)
	assert.Equal(t, 9, card.TotalWords)
}

func TestHistoryRequiresUser(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialStream(t *testing.T, srv *httptest.Server, sessID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream?sess=" + sessID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func validHello() types.ClientHello {
	return types.ClientHello{
		Type:       "hello",
		SampleRate: audio.CaptureRate,
		Channels:   audio.CaptureChannels,
		BitDepth:   audio.BitDepth,
	}
}

func readFrames(t *testing.T, conn *websocket.Conn, until string) []types.ServerFrame {
	t.Helper()
	var frames []types.ServerFrame
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f types.ServerFrame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == until {
			return frames
		}
	}
}

func TestStreamDeliversTurnsAndScore(t *testing.T) {
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 4800))
	f := newFixture(t, nil, []agent.Event{
		agent.TranscriptFragment{Speaker: transcript.SpeakerUser, Text: "I led the project"},
		agent.TranscriptFragment{Speaker: transcript.SpeakerAgent, Text: "Tell me more."},
		agent.AudioReply{Data: pcm},
		agent.TurnComplete{},
		agent.Closed{},
	})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	resp := createSession(t, f, "alice")
	conn := dialStream(t, srv, resp.SessionID)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(validHello()))

	frames := readFrames(t, conn, "score")

	var kinds []string
	for _, fr := range frames {
		kinds = append(kinds, fr.Type)
	}
	assert.Contains(t, kinds, "state")
	assert.Contains(t, kinds, "turn")

	last := frames[len(frames)-1]
	require.NotNil(t, last.Score)
	assert.Equal(t, 4, last.Score.TotalWords)

	// The finished conversation lands in the user's history.
	require.Eventually(t, func() bool {
		return len(f.repo.History("alice")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	item := f.repo.History("alice")[0]
	assert.Len(t, item.Turns, 2)
}

func TestStreamRejectsBadCaptureFormat(t *testing.T) {
	f := newFixture(t, nil, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	resp := createSession(t, f, "alice")
	conn := dialStream(t, srv, resp.SessionID)
	defer conn.Close()

	hello := validHello()
	hello.SampleRate = 44100
	require.NoError(t, conn.WriteJSON(hello))

	var fr types.ServerFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&fr))
	assert.Equal(t, "error", fr.Type)
	assert.Equal(t, string(voice.CategoryDevice), fr.Category)
}

func TestStreamRejectsUnknownSession(t *testing.T) {
	f := newFixture(t, nil, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialStream(t, srv, "sess_missing")
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(validHello()))

	var fr types.ServerFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&fr))
	assert.Equal(t, "error", fr.Type)
}

func TestStreamSecondAttachRejected(t *testing.T) {
	f := newFixture(t, nil, []agent.Event{})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	resp := createSession(t, f, "alice")
	first := dialStream(t, srv, resp.SessionID)
	defer first.Close()
	require.NoError(t, first.WriteJSON(validHello()))

	// Wait for the first leg to attach before racing it.
	readFrames(t, first, "state")

	second := dialStream(t, srv, resp.SessionID)
	defer second.Close()
	require.NoError(t, second.WriteJSON(validHello()))

	var fr types.ServerFrame
	require.NoError(t, second.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, second.ReadJSON(&fr))
	assert.Equal(t, "error", fr.Type)
}
