package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	chatModelName = "gemini-1.5-flash"

	// primingAck is the fixed acknowledgment injected as the second turn of
	// every call, biasing the model toward following the grounding prompt.
	// The Gemini API has no dedicated system role, so the grounding text and
	// this acknowledgment are sent as the first two turns instead.
	primingAck = "Understood, I'm ready to help!"
)

// Generator produces an assistant reply for a single turn. The API key is
// caller-supplied per request and must never be persisted or logged.
type Generator interface {
	Generate(ctx context.Context, apiKey, groundingPrompt, userMessage string) (string, error)
}

// LLMService calls the Gemini generateContent endpoint with the two-turn
// priming protocol. A fresh client is built per request because the
// credential belongs to the caller, not the server.
type LLMService struct{}

func NewLLMService() *LLMService {
	return &LLMService{}
}

func (s *LLMService) Generate(ctx context.Context, apiKey, groundingPrompt, userMessage string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(chatModelName)

	chatSession := model.StartChat()
	chatSession.History = []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(groundingPrompt)}},
		{Role: "model", Parts: []genai.Part{genai.Text(primingAck)}},
	}

	resp, err := chatSession.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if responseText.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}

	return responseText.String(), nil
}
