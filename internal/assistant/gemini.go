// Package assistant answers free-form chat turns that fall outside the
// structured booking flow, backed by Google's Gemini API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModelID = "gemini-2.5-flash"

const systemPrompt = `You are a friendly clinic assistant for an electronic medical records system.
You help patients with general questions about the clinic, appointments and prescriptions.
Keep answers short and conversational. Reply in plain text only, never in JSON or markdown.
If asked to book an appointment, tell the user to use the booking buttons in the chat.
Never invent patient data, diagnoses or medical advice.`

// Turn is one prior exchange in the free-form conversation.
type Turn struct {
	Role string // "user" or "assistant"
	Text string
}

// Client produces a free-form reply given the conversation so far.
type Client interface {
	Reply(ctx context.Context, history []Turn, message string) (string, error)
}

// Gemini implements Client using Google's Gemini API.
type Gemini struct {
	client  *genai.Client
	modelID string
}

// NewGemini creates a Gemini-backed assistant client.
func NewGemini(ctx context.Context, apiKey, modelID string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultModelID
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, modelID: modelID}, nil
}

// Reply sends the message with prior history and returns the model's text.
func (g *Gemini) Reply(ctx context.Context, history []Turn, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("assistant: message is empty")
	}

	model := g.client.GenerativeModel(g.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	cs := model.StartChat()
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("assistant: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("assistant: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("assistant: gemini returned empty content")
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return strings.TrimSpace(out.String()), nil
}

// Close releases resources held by the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
