// Package gemini generates post-session coaching feedback from a finished
// transcript.
package gemini

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/steveyiyo/voicecoach-backend/internal/core/transcript"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

type Client struct {
	c     *genai.Client
	model string
}

func New(apiKey, model string) (*Client, error) {
	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2: false,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
	}
	hc := &http.Client{Transport: tr, Timeout: 30 * time.Second}
	reqTimeout := 15 * time.Second
	cl, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: "v1",
			Timeout:    &reqTimeout,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{c: cl, model: model}, nil
}

func (g *Client) Close() error { return nil }

// Feedback asks the model for one short coaching note about the user's side
// of the conversation. Satisfies voice.FeedbackFunc.
func (g *Client) Feedback(ctx context.Context, persona types.PersonaConfig, turns []transcript.Turn) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a communication coach reviewing a practice conversation. The user was speaking with %s (%s, mood: %s).\n", persona.Name, persona.Role, persona.Mood)
	sb.WriteString("Give ONE short, actionable coaching note (2-3 sentences) on how the user could communicate better. Output JSON: {\"feedback\":\"string\"}.\n\nTranscript:\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "[%s] %s\n", t.Speaker, t.Text)
	}

	parts := []*genai.Part{{Text: sb.String()}}

	temp := float32(0.4)
	topP := float32(0.9)
	maxTok := int32(512)

	cfgJSON := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"feedback": {Type: genai.TypeString},
			},
			Required: []string{"feedback"},
		},
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: maxTok,
	}
	cfgText := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: maxTok,
	}

	if note, err := g.callOnce(ctx, parts, cfgJSON); err == nil && note != "" {
		return note, nil
	}
	return g.callOnce(ctx, parts, cfgText)
}

func (g *Client) callOnce(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		resp, err := g.c.Models.GenerateContent(ctx, g.model, []*genai.Content{{Parts: parts}}, cfg)
		if err != nil {
			lastErr = err
			if retriable(err) {
				time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
				continue
			}
			return "", err
		}
		if note, ok := parseFeedback(resp); ok {
			return note, nil
		}
		lastErr = errors.New("empty response")
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return "", lastErr
}

type feedbackPayload struct {
	Feedback string `json:"feedback"`
}

func parseFeedback(resp *genai.GenerateContentResponse) (string, bool) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.MIMEType == "application/json" {
				var out feedbackPayload
				if json.Unmarshal(p.InlineData.Data, &out) == nil && out.Feedback != "" {
					return out.Feedback, true
				}
			}
			if p.Text != "" {
				var out feedbackPayload
				if json.Unmarshal([]byte(p.Text), &out) == nil && out.Feedback != "" {
					return out.Feedback, true
				}
			}
		}
	}
	if t := resp.Text(); t != "" {
		return strings.TrimSpace(t), true
	}
	return "", false
}

func retriable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected EOF") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "RST_STREAM") ||
		strings.Contains(s, "connection reset")
}
