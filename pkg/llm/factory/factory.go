package factory

import (
	"fmt"

	"datachat-be/pkg/llm"
	"datachat-be/pkg/llm/gemini"
	"datachat-be/pkg/llm/ollama"
)

// NewProvider creates an LLMProvider instance based on the provider type
func NewProvider(providerType, apiKey, baseURL, modelName string) (llm.LLMProvider, error) {
	switch providerType {
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an api key")
		}
		return gemini.NewGeminiProvider(apiKey, modelName), nil
	case "ollama":
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", providerType)
	}
}
