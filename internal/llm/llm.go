package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

// Provider is the reasoning-call contract: a fixed system instruction, a
// user payload, free text back. JSON recovery is the caller's job.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
}

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	Model     string
	MaxTokens int
	apiKey    string
	client    *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider, resolving the key from the
// given env var.
func NewOpenAIProvider(model, apiKeyEnv string, maxTokens int) *OpenAIProvider {
	apiKey := os.Getenv(apiKeyEnv)
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		Model:     model,
		MaxTokens: maxTokens,
		apiKey:    apiKey,
		client:    &client,
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Complete sends the instruction and payload to OpenAI and returns the
// raw response text.
func (o *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	response, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(system),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(user),
					},
				},
			},
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(int64(o.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	return response.Choices[0].Message.Content, nil
}

// OllamaProvider is a local Ollama fallback with the same contract.
type OllamaProvider struct {
	Model     string
	BaseURL   string
	MaxTokens int
	client    *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, maxTokens int) *OllamaProvider {
	return &OllamaProvider{
		Model:     model,
		BaseURL:   baseURL,
		MaxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	return false
}

// Complete sends the instruction and payload to Ollama and returns the raw
// response text.
func (o *OllamaProvider) Complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": o.MaxTokens,
			"temperature": 0.3,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Message.Content, nil
}

// CreateProvider creates a reasoning provider based on configuration,
// falling back from Ollama to OpenAI when the preferred one is not
// available. Returns nil when neither is usable.
func CreateProvider(provider, ollamaModel, ollamaURL, openaiModel, apiKeyEnv string, maxTokens int) Provider {
	if strings.ToLower(provider) == "ollama" {
		p := NewOllamaProvider(ollamaModel, ollamaURL, maxTokens)
		if p.IsConfigured() {
			zap.L().Info("using ollama", zap.String("model", ollamaModel))
			return p
		}
		zap.L().Warn("ollama not available, trying OpenAI fallback")
	}

	p := NewOpenAIProvider(openaiModel, apiKeyEnv, maxTokens)
	if p.IsConfigured() {
		zap.L().Info("using openai", zap.String("model", openaiModel))
		return p
	}

	zap.L().Warn("no reasoning provider available",
		zap.String("hint", "start Ollama or set the OpenAI API key"))
	return nil
}
