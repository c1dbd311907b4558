package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiClient talks to the Generative Language REST API.
type GeminiClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewGemini(apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Providers returns one provider per roster candidate, in roster order.
func (c *GeminiClient) Providers(r *Roster) []Provider {
	out := make([]Provider, 0, len(r.candidates))
	for _, m := range r.candidates {
		out = append(out, geminiModel{client: c, name: m.Name})
	}
	return out
}

type geminiModel struct {
	client *GeminiClient
	name   string
}

func (m geminiModel) Model() string { return m.name }

func (m geminiModel) Complete(ctx context.Context, prompt string) (string, error) {
	return m.client.Generate(ctx, m.name, prompt)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate runs a single-turn generateContent call against model.
func (c *GeminiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", model, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		pe := &ProviderError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			pe.Code = ae.Error.Status
			pe.Message = ae.Error.Message
		}
		// An invalid key comes back as 400 INVALID_ARGUMENT.
		if res.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(pe.Message), "api key") {
			pe.Kind = AuthInvalid
		}
		return "", pe
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New("response missing candidates")
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("response empty")
	}
	return b.String(), nil
}
