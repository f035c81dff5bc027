package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceClient calls the hosted inference API. The API has no separate
// system field, so a system prompt is folded into the prompt text.
type HuggingFaceClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewHuggingFaceClient(baseURL, apiKey, model string) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	return &HuggingFaceClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *HuggingFaceClient) Generate(ctx context.Context, genReq *GenerateRequest) (string, error) {
	input := genReq.Prompt
	if genReq.System != "" {
		input = genReq.System + "\n\n" + genReq.Prompt
	}

	payload := map[string]any{"inputs": input}
	if genReq.Temperature > 0 {
		payload["parameters"] = map[string]any{"temperature": genReq.Temperature}
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("huggingface API error: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return normalizeResponse(body)
}

// GenerateStream emulates streaming over the single-response API: the full
// completion is delivered as one chunk.
func (c *HuggingFaceClient) GenerateStream(ctx context.Context, genReq *GenerateRequest, onChunk func(string)) error {
	text, err := c.Generate(ctx, genReq)
	if err != nil {
		return err
	}
	onChunk(text)
	return nil
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// normalizeResponse coerces the known inference API response shapes to a
// single string: a list of generation objects, one generation object, or a
// bare JSON string.
func normalizeResponse(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response from huggingface")
	}

	switch trimmed[0] {
	case '[':
		var generations []hfGeneration
		if err := json.Unmarshal(trimmed, &generations); err != nil {
			return "", fmt.Errorf("failed to decode generation list: %w", err)
		}
		if len(generations) == 0 {
			return "", fmt.Errorf("huggingface returned no generations")
		}
		return generations[0].GeneratedText, nil
	case '{':
		var generation hfGeneration
		if err := json.Unmarshal(trimmed, &generation); err != nil {
			return "", fmt.Errorf("failed to decode generation object: %w", err)
		}
		// Error payloads arrive as objects without generated_text.
		if generation.GeneratedText == "" {
			return "", fmt.Errorf("huggingface response has no generated_text: %s", firstLine(trimmed))
		}
		return generation.GeneratedText, nil
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("failed to decode generation string: %w", err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("unrecognized huggingface response shape: %s", firstLine(trimmed))
	}
}

func firstLine(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
