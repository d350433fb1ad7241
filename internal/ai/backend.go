// Package ai runs AI-assisted operations as audited runs made of ordered,
// persisted steps.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is a JSON object captured as step input or output.
type Payload map[string]any

// Generator is the text-generation port: a prompt in, raw model text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Request is what a generation step asks of a Backend. Placeholder is the
// result returned when no model is configured.
type Request struct {
	Prompt      string
	Placeholder Payload
}

// Backend produces structured output for a generation step. The choice
// between a live model and placeholders is made once, when the backend is
// built.
type Backend interface {
	Generate(ctx context.Context, req Request) (Payload, error)
	Name() string
}

// Mock returns each request's placeholder and never calls a Generator.
type Mock struct{}

func (Mock) Name() string { return "mock" }

func (Mock) Generate(_ context.Context, req Request) (Payload, error) {
	return clonePayload(req.Placeholder), nil
}

// Live sends the prompt to a Generator and parses the reply as JSON.
type Live struct {
	Gen Generator
	// Provider names the generator in logs and run metadata.
	Provider string
}

func (l Live) Name() string {
	if l.Provider == "" {
		return "live"
	}
	return l.Provider
}

func (l Live) Generate(ctx context.Context, req Request) (Payload, error) {
	text, err := l.Gen.Generate(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}
	return ParseJSON(text)
}

// NewBackend returns Mock when gen is nil, Live otherwise.
func NewBackend(gen Generator, provider string) Backend {
	if gen == nil {
		return Mock{}
	}
	return Live{Gen: gen, Provider: provider}
}

// ParseJSON decodes model output into a JSON object. Text that is not a
// JSON object on its own is searched for a fenced code block (```json ...
// ``` or a bare ``` ... ```), which is unwrapped and decoded instead. Empty
// output decodes to an empty object.
func ParseJSON(text string) (Payload, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Payload{}, nil
	}
	p, err := decodeObject(s)
	if err == nil {
		return p, nil
	}
	body, ok := unfence(s)
	if !ok {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	if body == "" {
		return Payload{}, nil
	}
	p, err = decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return p, nil
}

func decodeObject(s string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// unfence returns the body between the first fence and the last one, with
// an optional language tag dropped.
func unfence(s string) (string, bool) {
	i := strings.Index(s, "```")
	if i < 0 {
		return "", false
	}
	rest := s[i+3:]
	rest = strings.TrimLeftFunc(rest, isFenceTag)
	if j := strings.LastIndex(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}

func isFenceTag(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+'
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return Payload{}
	}
	var out Payload
	_ = json.Unmarshal(b, &out)
	return out
}

func encodePayload(p Payload) (string, error) {
	if p == nil {
		p = Payload{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPayload converts a JSON-encodable struct into a Payload.
func ToPayload(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}
