package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	geminiModel       = "text-embedding-004"
	geminiEndpointFmt = "https://generativelanguage.googleapis.com/v1/models/%s:embedContent"
)

// geminiHTTPClient is shared across requests so connections are reused.
var geminiHTTPClient = &http.Client{Timeout: 30 * time.Second}

// GeminiProvider implements EmbeddingProvider against Google's
// text-embedding-004 model. Unlike Ollama, Gemini honors the task type
// hint, so documents and queries get asymmetric embeddings.
type GeminiProvider struct {
	apiKey string
}

func NewGeminiProvider(apiKey string) EmbeddingProvider {
	return &GeminiProvider{apiKey: apiKey}
}

func (p *GeminiProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	payload, err := json.Marshal(EmbeddingRequest{
		Model: geminiModel,
		Content: EmbeddingRequestContent{
			Parts: []EmbeddingRequestContentPart{{Text: text}},
		},
		TaskType: taskType,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf(geminiEndpointFmt, geminiModel), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := geminiHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini embedding error: code %d, body %s", resp.StatusCode, string(body))
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
