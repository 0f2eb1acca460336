package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (OpenAI, OpenAI-compatible, Ollama) implement this
// interface; prompt enhancement and site generation are both expressed
// through it.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
