package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const anthropicVersion = "2023-06-01"

var errEmptyContent = errors.New("empty response content")

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Anthropic Messages API ---

type anthropicProvider struct{}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (anthropicProvider) endpoint(baseURL string) string {
	return baseURL + "/messages"
}

func (anthropicProvider) headers(h http.Header, apiKey string) {
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", anthropicVersion)
}

func (anthropicProvider) body(model, prompt, system string, maxTokens int, temperature float64) any {
	return anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	}
}

func (anthropicProvider) parse(raw []byte) (string, usage, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", usage{}, fmt.Errorf("unmarshal response: %w", err)
	}
	u := usage{prompt: resp.Usage.InputTokens, completion: resp.Usage.OutputTokens}
	for _, c := range resp.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text, u, nil
		}
	}
	return "", u, errEmptyContent
}

// --- OpenAI-compatible chat completions (OpenAI, Groq) ---

type openAIProvider struct{}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (openAIProvider) endpoint(baseURL string) string {
	return baseURL + "/chat/completions"
}

func (openAIProvider) headers(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

func (openAIProvider) body(model, prompt, system string, maxTokens int, temperature float64) any {
	msgs := make([]message, 0, 2)
	if system != "" {
		msgs = append(msgs, message{Role: "system", Content: system})
	}
	msgs = append(msgs, message{Role: "user", Content: prompt})
	return openAIRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func (openAIProvider) parse(raw []byte) (string, usage, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", usage{}, fmt.Errorf("unmarshal response: %w", err)
	}
	u := usage{prompt: resp.Usage.PromptTokens, completion: resp.Usage.CompletionTokens}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", u, errEmptyContent
	}
	return resp.Choices[0].Message.Content, u, nil
}
