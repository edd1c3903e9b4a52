package provider

import (
	"errors"
	"fmt"
	"strings"
)

// errNoProviders is wrapped into a ProviderError when a capability has no
// configured chain at all.
var errNoProviders = errors.New("no providers configured")

// Capability names one slot of the pipeline a provider chain serves.
type Capability string

const (
	CapabilitySTT Capability = "stt"
	CapabilityLLM Capability = "llm"
	CapabilityTTS Capability = "tts"
)

// ProviderError reports that a capability could not be served. Attempted
// lists every provider tried before giving up; Err is the last failure.
type ProviderError struct {
	Capability Capability
	Provider   string
	Attempted  []string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
	}
	if len(e.Attempted) > 1 {
		return fmt.Sprintf("%s failed after trying %s: %v", e.Capability, strings.Join(e.Attempted, ", "), e.Err)
	}
	return fmt.Sprintf("%s provider %s failed: %v", e.Capability, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
