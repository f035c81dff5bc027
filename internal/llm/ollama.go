package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaClient calls a local Ollama server for generation and embeddings.
type OllamaClient struct {
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
}

func NewOllamaClient(baseURL, model, embedModel string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL:    baseURL,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation can be slow on local hardware
		},
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

func (c *OllamaClient) generatePayload(req *GenerateRequest, stream bool) *ollamaGenerateRequest {
	payload := &ollamaGenerateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: stream,
	}
	if req.Temperature > 0 {
		payload.Options = map[string]any{"temperature": req.Temperature}
	}
	return payload
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// Generate requests a completion. Ollama may answer with a single JSON
// object or a stream of JSON-lines fragments; both are handled by decoding
// until Done or EOF and concatenating the pieces.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	resp, err := c.post(ctx, "/api/generate", c.generatePayload(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result bytes.Buffer
	decoder := json.NewDecoder(resp.Body)
	for {
		var genResp ollamaGenerateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		result.WriteString(genResp.Response)
		if genResp.Done {
			break
		}
	}
	return result.String(), nil
}

// GenerateStream requests a streamed completion and hands each fragment to
// onChunk as it arrives. A failure mid-stream returns an error; fragments
// already delivered stand.
func (c *OllamaClient) GenerateStream(ctx context.Context, req *GenerateRequest, onChunk func(string)) error {
	resp, err := c.post(ctx, "/api/generate", c.generatePayload(req, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var genResp ollamaGenerateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if genResp.Response != "" {
			onChunk(genResp.Response)
		}
		if genResp.Done {
			break
		}
	}
	return nil
}

// Embed generates an embedding for the given text using the configured
// embedding model.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.post(ctx, "/api/embeddings", map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from ollama")
	}
	return result.Embedding, nil
}
