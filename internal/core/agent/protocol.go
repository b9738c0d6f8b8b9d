package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

// Wire structures for the live channel (BidiGenerateContent frames).

type textPart struct {
	Text string `json:"text,omitempty"`
}

type blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []textPart `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *wireContent     `json:"systemInstruction,omitempty"`
	InputAudioTranscription  struct{}         `json:"inputAudioTranscription"`
	OutputAudioTranscription struct{}         `json:"outputAudioTranscription"`
}

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio *blob `json:"audio,omitempty"`
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []wireContent `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type receivedPart struct {
	Text       string `json:"text"`
	InlineData *blob  `json:"inlineData"`
}

type receivedContent struct {
	Parts []receivedPart `json:"parts"`
}

type transcriptionText struct {
	Text string `json:"text"`
}

type serverContent struct {
	ModelTurn           *receivedContent   `json:"modelTurn"`
	InputTranscription  *transcriptionText `json:"inputTranscription"`
	OutputTranscription *transcriptionText `json:"outputTranscription"`
	TurnComplete        bool               `json:"turnComplete"`
	Interrupted         bool               `json:"interrupted"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}

type serverError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	GoAway        *goAway        `json:"goAway"`
	Error         *serverError   `json:"error"`
}

// Event is one inbound occurrence on the live channel.
type Event interface {
	eventType() string
}

// TranscriptFragment is a partial transcription of ongoing speech for one
// speaker.
type TranscriptFragment struct {
	Speaker transcript.Speaker
	Text    string
}

func (TranscriptFragment) eventType() string { return "transcript_fragment" }

// AudioReply carries one base64 synthesized-speech payload at playback rate.
// Decoding is left to the playback path so one bad frame can be skipped.
type AudioReply struct {
	Data string
}

func (AudioReply) eventType() string { return "audio_reply" }

// TurnComplete signals that the current exchange finished on the remote side.
type TurnComplete struct{}

func (TurnComplete) eventType() string { return "turn_complete" }

// Interrupted signals the user talked over the agent; playback must stop.
type Interrupted struct{}

func (Interrupted) eventType() string { return "interrupted" }

// ChannelError is a fault reported in-band by the remote side.
type ChannelError struct {
	Code    int
	Message string
}

func (ChannelError) eventType() string { return "error" }

// Closed is the terminal event; Err is nil on a clean remote close.
type Closed struct {
	Err error
}

func (Closed) eventType() string { return "closed" }

// decodeServerMessage maps one wire frame into zero or more events, in the
// order they must be applied.
func decodeServerMessage(data []byte) ([]Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}

	var events []Event
	if msg.Error != nil {
		events = append(events, ChannelError{Code: msg.Error.Code, Message: msg.Error.Message})
	}
	if msg.GoAway != nil {
		events = append(events, ChannelError{Message: "server is closing the channel"})
	}
	if sc := msg.ServerContent; sc != nil {
		// Interruption comes before any trailing audio so stale frames never
		// get scheduled after the reset.
		if sc.Interrupted {
			events = append(events, Interrupted{})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, TranscriptFragment{Speaker: transcript.SpeakerUser, Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, TranscriptFragment{Speaker: transcript.SpeakerAgent, Text: sc.OutputTranscription.Text})
		}
		if sc.ModelTurn != nil && !sc.Interrupted {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil && p.InlineData.Data != "" {
					events = append(events, AudioReply{Data: p.InlineData.Data})
				}
			}
		}
		if sc.TurnComplete {
			events = append(events, TurnComplete{})
		}
	}
	return events, nil
}

// BuildSystemInstruction renders the persona descriptor into the behavioral
// directive the agent is configured with.
func BuildSystemInstruction(p types.PersonaConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.", p.Name, strings.TrimSuffix(p.Role, "."))
	if p.Mood != "" {
		fmt.Fprintf(&b, " Your mood is %s.", p.Mood)
	}
	lang := p.Language
	if lang == "" {
		lang = "English"
	}
	fmt.Fprintf(&b, " Speak only %s.", lang)

	switch {
	case p.Difficulty >= 8:
		b.WriteString(" Be demanding: challenge vague answers, interrupt rambling, and press for specifics.")
	case p.Difficulty >= 4:
		b.WriteString(" Be direct but fair: ask one follow-up question when an answer lacks substance.")
	default:
		b.WriteString(" Be supportive and encouraging; keep the conversation flowing.")
	}
	b.WriteString(" Keep replies short and conversational, one to three sentences. This is a spoken conversation, never use markdown or lists.")
	return b.String()
}
