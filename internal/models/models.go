package models

import (
	"fmt"
	"strings"
)

// ImageHandle represents one image known to a session, either selected
// locally or returned by the translation backend.
type ImageHandle struct {
	Ref     string `json:"ref"`
	Name    string `json:"name"`
	Payload []byte `json:"-"` // nil for server-returned handles
}

// Local reports whether the handle still carries its source bytes.
func (h ImageHandle) Local() bool {
	return h.Payload != nil
}

// SessionState is the view a session is currently in.
type SessionState int

const (
	StateCollecting SessionState = iota
	StateProcessing
	StateResults
)

func (s SessionState) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateProcessing:
		return "processing"
	case StateResults:
		return "results"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Engine selects the backend translator.
type Engine string

const (
	EngineGemini   Engine = "gemini"
	EngineDeepSeek Engine = "deepseek"
	EngineGoogle   Engine = "google"
)

// DefaultEngine is used when no engine is chosen.
const DefaultEngine = EngineGemini

// Engines lists the selectable engines in display order.
func Engines() []Engine {
	return []Engine{EngineGemini, EngineDeepSeek, EngineGoogle}
}

// ParseEngine validates an engine name. An empty name selects DefaultEngine.
func ParseEngine(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultEngine, nil
	}
	for _, e := range Engines() {
		if string(e) == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown translation engine %q (supported: gemini, deepseek, google)", name)
}

// SessionSnapshot is a point-in-time view of a session.
type SessionSnapshot struct {
	State     SessionState  `json:"state"`
	Engine    Engine        `json:"engine"`
	Images    []ImageHandle `json:"images"`
	LastError string        `json:"last_error,omitempty"`
}
