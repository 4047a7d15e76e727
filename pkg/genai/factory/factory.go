package factory

import (
	"fmt"

	"github.com/OussamaSEBROU/the-senctuary/pkg/genai"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai/gemini"
	"github.com/OussamaSEBROU/the-senctuary/pkg/genai/openai"
)

// NewProvider selects the generative-AI collaborator by config. Gemini is
// the default: it accepts inline PDF bytes, which the extraction flow
// requires.
func NewProvider(providerType, model, geminiAPIKey, openAIAPIKey, openAIBaseURL string) (genai.Provider, error) {
	switch providerType {
	case "gemini", "":
		return gemini.NewProvider(geminiAPIKey, model), nil
	case "openai":
		return openai.NewProvider(openAIAPIKey, model, openAIBaseURL)
	default:
		return nil, fmt.Errorf("unsupported genai provider: %s", providerType)
	}
}
