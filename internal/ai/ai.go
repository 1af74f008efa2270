// Package ai holds the text-generation collaborators behind the chat route.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a provider produced no text.
var ErrEmptyResponse = errors.New("ai: empty response")

// Prompt is one chat request.
type Prompt struct {
	Text string
	// Tone is a free-form style hint such as "supportive" or "concise".
	Tone string
}

// Provider generates a reply for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// systemInstruction renders the tone hint as a system instruction.
func systemInstruction(tone string) string {
	tone = strings.TrimSpace(tone)
	if tone == "" {
		return "You are SynapticAI, a thoughtful personal assistant. Answer clearly."
	}
	return fmt.Sprintf("You are SynapticAI, a thoughtful personal assistant. Answer in a %s tone.", tone)
}

// Echo is a Provider that returns the prompt. It is used when no model
// credentials are configured.
type Echo struct{}

func (Echo) Name() string { return "echo" }

func (Echo) Generate(_ context.Context, p Prompt) (string, error) {
	if p.Tone == "" {
		return p.Text, nil
	}
	return "[" + p.Tone + "] " + p.Text, nil
}
