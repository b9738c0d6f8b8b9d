// Package voice coordinates one live coaching session: the agent channel,
// playback scheduling, transcript assembly, and end-of-session scoring.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/steveyiyo/voicecoach-backend/internal/core/agent"
	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/core/scoring"
	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/internal/logging"
	"github.com/steveyiyo/voicecoach-backend/internal/metrics"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateStreaming
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the live channel surface the lifecycle drives. Satisfied by
// *agent.Session; faked in tests.
type Transport interface {
	Events() <-chan agent.Event
	SendAudio(data string) error
	SendControlText(text string) error
	Close() error
}

// Dialer opens the live channel during the Connecting state.
type Dialer func(ctx context.Context, cfg agent.Config) (Transport, error)

// FeedbackFunc optionally turns finished user turns into a coaching note.
// Best effort: a failure never blocks the score card.
type FeedbackFunc func(ctx context.Context, persona types.PersonaConfig, turns []transcript.Turn) (string, error)

// Sink receives everything the engine produces for the host surface. All
// methods are called from the session's dispatch goroutine, except PlayAudio
// which the playback scheduler calls at each frame's start time.
type Sink interface {
	StateChanged(s State)
	PlayAudio(f audio.Frame)
	Turn(t transcript.Turn)
	Interrupted()
	Score(card scoring.Card, feedback string)
	Fatal(category ErrorCategory, message string)
}

// Config assembles a session's collaborators.
type Config struct {
	Agent    agent.Config
	Dial     Dialer
	Clock    audio.Clock
	Scoring  scoring.Config
	Feedback FeedbackFunc

	// FeedbackTimeout bounds the post-session feedback call.
	FeedbackTimeout time.Duration
}

// Session is the aggregate root of one live coaching conversation. It owns
// exactly one transport, one playback scheduler, and one pending-transcript
// buffer, and is exclusively owned by the surface that created it.
type Session struct {
	ID        string
	Persona   types.PersonaConfig
	StartedAt time.Time

	cfg  Config
	sink Sink

	sched *audio.Scheduler
	asm   *transcript.Assembler

	transport Transport
	state     atomic.Int32

	mu    sync.Mutex
	turns []transcript.Turn

	framesSent     atomic.Int64
	framesReceived atomic.Int64

	closeOnce sync.Once
	finished  chan struct{}
}

// New creates a session in the Connecting state.
func New(id string, persona types.PersonaConfig, cfg Config, sink Sink) *Session {
	if cfg.Dial == nil {
		cfg.Dial = func(ctx context.Context, ac agent.Config) (Transport, error) {
			return agent.Dial(ctx, ac)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = audio.SystemClock()
	}
	if len(cfg.Scoring.FillerWords) == 0 {
		cfg.Scoring = scoring.DefaultConfig()
	}
	if cfg.FeedbackTimeout <= 0 {
		cfg.FeedbackTimeout = 10 * time.Second
	}
	cfg.Agent.Persona = persona

	s := &Session{
		ID:        id,
		Persona:   persona,
		StartedAt: time.Now(),
		cfg:       cfg,
		sink:      sink,
		asm:       transcript.New(),
		finished:  make(chan struct{}),
	}
	s.sched = audio.NewScheduler(cfg.Clock, sink.PlayAudio)
	s.state.Store(int32(StateConnecting))
	return s
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats reports per-session frame counters for the summary surface.
func (s *Session) Stats() (sent, received int64, turns int) {
	s.mu.Lock()
	turns = len(s.turns)
	s.mu.Unlock()
	return s.framesSent.Load(), s.framesReceived.Load(), turns
}

// Turns returns a copy of the finalized transcript so far.
func (s *Session) Turns() []transcript.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Turn(nil), s.turns...)
}

// Run drives the session to a terminal state and returns when it is fully
// torn down. Resource release happens on every exit path, failure included.
func (s *Session) Run(ctx context.Context) {
	transport, err := s.cfg.Dial(ctx, s.cfg.Agent)
	if err != nil {
		s.teardown(err)
		return
	}
	s.transport = transport
	defer s.transport.Close()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s.setState(StateOpen)
	// Streaming is Open with both loops armed; named for intent.
	s.setState(StateStreaming)

	for {
		select {
		case <-ctx.Done():
			s.teardown(nil)
			return
		case ev, ok := <-transport.Events():
			if !ok {
				s.teardown(nil)
				return
			}
			if terminal := s.dispatch(ev); terminal != nil {
				if errors.Is(terminal, errCleanClose) {
					s.teardown(nil)
				} else {
					s.teardown(terminal)
				}
				return
			}
		}
	}
}

var errCleanClose = errors.New("voice: channel closed cleanly")

// dispatch applies one inbound event. Returns non-nil when the session must
// end. All per-frame faults are absorbed here to keep the stream alive.
func (s *Session) dispatch(ev agent.Event) error {
	switch e := ev.(type) {
	case agent.TranscriptFragment:
		s.asm.Append(e.Speaker, e.Text)

	case agent.AudioReply:
		frame, err := audio.DecodePlayback(e.Data)
		if err != nil {
			// One bad frame never aborts the session; skip and continue.
			logging.Sugar().Debugw("skipping malformed audio frame", "session", s.ID, "err", err)
			metrics.MalformedFrames.Inc()
			return nil
		}
		s.framesReceived.Add(1)
		metrics.FramesReceived.Inc()
		s.sched.Enqueue(frame)

	case agent.TurnComplete:
		s.flushTurns()

	case agent.Interrupted:
		s.sched.Interrupt()
		metrics.Interruptions.Inc()
		s.sink.Interrupted()

	case agent.ChannelError:
		return fmt.Errorf("%w: %s", agent.ErrHandshake, e.Message)

	case agent.Closed:
		if e.Err != nil {
			return e.Err
		}
		return errCleanClose
	}
	return nil
}

func (s *Session) flushTurns() {
	for _, t := range s.asm.CompleteTurn() {
		s.mu.Lock()
		s.turns = append(s.turns, t)
		s.mu.Unlock()
		s.sink.Turn(t)
	}
}

// SendAudio forwards one validated base64 capture frame to the live channel.
// Frames arriving before the channel is open are dropped, not queued.
func (s *Session) SendAudio(data string) {
	if s.State() != StateStreaming {
		return
	}
	if err := s.transport.SendAudio(data); err != nil {
		// Best effort; sustained failure surfaces via channel close events.
		logging.Sugar().Debugw("capture frame dropped", "session", s.ID)
		return
	}
	s.framesSent.Add(1)
	metrics.FramesSent.Inc()
}

// SendControlText injects an out-of-band instruction mid-session.
func (s *Session) SendControlText(text string) error {
	if s.State() != StateStreaming {
		return errors.New("voice: session is not streaming")
	}
	return s.transport.SendControlText(text)
}

// SwitchLanguage asks the persona to continue in another spoken language
// without interrupting the audio stream.
func (s *Session) SwitchLanguage(code string) error {
	return s.SendControlText("From now on, speak only " + code + ". Acknowledge briefly in that language and continue the conversation.")
}

// Close requests an explicit user exit. It returns once teardown completed.
func (s *Session) Close() {
	if t := s.transport; t != nil {
		t.Close()
	} else {
		s.teardown(nil)
	}
	<-s.finished
}

// Done is closed when the session reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.finished
}

// teardown runs the Closed-entry actions exactly once: stop playback, close
// the channel, flush the in-progress turn, then score and surface results.
func (s *Session) teardown(fatal error) {
	s.closeOnce.Do(func() {
		// finished must release waiters even when Run was never started.
		defer close(s.finished)
		s.sched.Close()
		if s.transport != nil {
			s.transport.Close()
		}

		// An incomplete trailing utterance is still recorded.
		if s.asm.Pending() {
			s.flushTurns()
		}

		if fatal != nil {
			s.setState(StateError)
			category := Classify(fatal)
			logging.Sugar().Warnw("session failed", "session", s.ID, "category", category, "err", fatal)
			metrics.SessionsTotal.WithLabelValues("error").Inc()
			s.sink.Fatal(category, category.Message())
			return
		}

		s.setState(StateClosed)
		metrics.SessionsTotal.WithLabelValues("closed").Inc()
		metrics.SessionDuration.Observe(time.Since(s.StartedAt).Seconds())

		turns := s.Turns()
		if len(transcript.UserTurns(turns)) == 0 {
			return
		}
		card := s.cfg.Scoring.Score(turns)
		feedback := ""
		if s.cfg.Feedback != nil {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FeedbackTimeout)
			defer cancel()
			if note, err := s.cfg.Feedback(ctx, s.Persona, turns); err == nil {
				feedback = note
			} else {
				logging.Sugar().Debugw("feedback generation failed", "session", s.ID, "err", err)
			}
		}
		s.sink.Score(card, feedback)
	})
}

func (s *Session) setState(next State) {
	s.state.Store(int32(next))
	s.sink.StateChanged(next)
}
