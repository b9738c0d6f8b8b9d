package voice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steveyiyo/voicecoach-backend/internal/core/agent"
	"github.com/steveyiyo/voicecoach-backend/internal/core/audio"
	"github.com/steveyiyo/voicecoach-backend/internal/core/quota"
	"github.com/steveyiyo/voicecoach-backend/pkg/types"
)

// ErrDeviceConfiguration indicates the capture device cannot supply the
// required format. Fatal and never retried: permission prompts must not loop.
var ErrDeviceConfiguration = errors.New("voice: capture device configuration unsupported")

// ErrorCategory is the user-facing classification of a fatal session fault.
// Raw transport error text never crosses this boundary.
type ErrorCategory string

const (
	CategoryDevice       ErrorCategory = "device"
	CategoryConnectivity ErrorCategory = "connectivity"
	CategoryEntitlement  ErrorCategory = "entitlement"
)

// Message returns the fixed user-facing text for a category.
func (c ErrorCategory) Message() string {
	switch c {
	case CategoryDevice:
		return "Your microphone could not be configured for this session."
	case CategoryEntitlement:
		return "Your account cannot start this session right now."
	default:
		return "The connection to your coach was lost. Please try again."
	}
}

// Classify maps an internal fault to its user-facing category.
func Classify(err error) ErrorCategory {
	switch {
	case errors.Is(err, ErrDeviceConfiguration):
		return CategoryDevice
	case errors.Is(err, quota.ErrExceeded):
		return CategoryEntitlement
	case errors.Is(err, agent.ErrHandshake):
		msg := strings.ToLower(err.Error())
		for _, hint := range []string{"401", "403", "api key", "unauthorized", "quota", "permission"} {
			if strings.Contains(msg, hint) {
				return CategoryEntitlement
			}
		}
		return CategoryConnectivity
	default:
		return CategoryConnectivity
	}
}

// ValidateCaptureFormat fails fast when the declared capture format does not
// match the fixed rate the encoder and the live channel agreed on. Silently
// degrading quality is not an option.
func ValidateCaptureFormat(hello types.ClientHello) error {
	if hello.SampleRate != audio.CaptureRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrDeviceConfiguration, hello.SampleRate, audio.CaptureRate)
	}
	if hello.Channels != audio.CaptureChannels {
		return fmt.Errorf("%w: %d channels, want %d", ErrDeviceConfiguration, hello.Channels, audio.CaptureChannels)
	}
	if hello.BitDepth != audio.BitDepth {
		return fmt.Errorf("%w: bit depth %d, want %d", ErrDeviceConfiguration, hello.BitDepth, audio.BitDepth)
	}
	return nil
}
