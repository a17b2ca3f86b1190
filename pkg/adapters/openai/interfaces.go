package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/retry"
)

// OpenAIClient is a minimal client for the OpenAI Chat API
type OpenAIClient struct {
	APIKey       string
	DumpRequests bool
	// DumpDir is where request dumps go. Empty means "debug_llm_requests".
	DumpDir     string
	BaseURL     string
	HTTPClient  *http.Client
	RetryConfig retry.Config
	// Timeout bounds each attempt. Zero means no per-attempt limit.
	Timeout time.Duration
	Logger  retry.Logger
}

type LanguageModelClient interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	SetBaseURL(baseUrl string)
}

// ChatCompletionRequest is the request body for the chat completion endpoint
type ChatCompletionRequest struct {
	Model               string          `json:"model"`
	User                string          `json:"user,omitempty"`
	Messages            []ChatMessage   `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         float32         `json:"temperature,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
	ReasoningEffort     ReasoningEffort `json:"reasoning_effort,omitempty"`
}

type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

const (
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

type ResponseFormat struct {
	Type       string            `json:"type,omitempty"`
	JsonSchema *JsonSchemaObject `json:"json_schema,omitempty"`
}

// JsonSchemaObject names a schema for structured output. Schema is any value
// that marshals to a JSON Schema document.
type JsonSchemaObject struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Strict      bool   `json:"strict,omitempty"`
	Schema      any    `json:"schema"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// The response from the chat completion endpoint
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   ChatCompletionUsage    `json:"usage"`
}

type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image_url"
)

// ContentPart is one element of a multimodal message
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatMessage carries either plain text Content or multimodal Parts. When
// Parts is set it is sent as the content array and Content is ignored.
type ChatMessage struct {
	Role    MessageRole   `json:"role"`
	Content *string       `json:"content,omitempty"`
	Parts   []ContentPart `json:"-"`
}

type chatMessageWire struct {
	Role    MessageRole     `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	wire := chatMessageWire{Role: m.Role}
	var err error
	switch {
	case len(m.Parts) > 0:
		wire.Content, err = json.Marshal(m.Parts)
	case m.Content != nil:
		wire.Content, err = json.Marshal(*m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var wire chatMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = nil
	m.Parts = nil
	if len(wire.Content) == 0 || string(wire.Content) == "null" {
		return nil
	}
	if wire.Content[0] == '[' {
		return json.Unmarshal(wire.Content, &m.Parts)
	}
	var s string
	if err := json.Unmarshal(wire.Content, &s); err != nil {
		return err
	}
	m.Content = &s
	return nil
}

type ChatError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ChatCompletionResponseError struct {
	Error ChatError `json:"error"`
}

// ChatCompletionError wraps standard errors with raw response body for error logging
type ChatCompletionError struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status_code,omitempty"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
}

func (e *ChatCompletionError) Error() string {
	return e.Message
}

// GetRawResponseBody returns the raw response body if available
func (e *ChatCompletionError) GetRawResponseBody() json.RawMessage {
	return e.RawBody
}
