package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/FrenchMajesty/shoewall/internal/retry"
)

const openaiBaseURL = "https://api.openai.com/v1"

// Creates a new OpenAIClient
func NewClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		APIKey:      apiKey,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.DefaultConfig(),
		BaseURL:     openaiBaseURL,
	}
}

var _ LanguageModelClient = (*OpenAIClient)(nil)

// Sends a chat completion request to OpenAI with retry logic
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	url := c.BaseURL + "/chat/completions"

	bodyBytes, err := c.createAndRunRetryableRequest(ctx, url, req, "chat")
	if err != nil {
		return nil, err
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return nil, &ChatCompletionError{
			Message:    fmt.Sprintf("failed to parse chat completion response: %v", err),
			StatusCode: http.StatusOK,
			RawBody:    json.RawMessage(bodyBytes),
		}
	}

	return &chatResp, nil
}

// Sets the base URL for the OpenAI client
func (c *OpenAIClient) SetBaseURL(baseUrl string) {
	c.BaseURL = baseUrl
}

// ImagePart embeds raw image bytes as a base64 data URL
func ImagePart(image []byte, mimeType string) ContentPart {
	return ContentPart{
		Type: ContentPartImage,
		ImageURL: &ImageURL{
			URL:    "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image),
			Detail: "high",
		},
	}
}

// TextPart is a plain text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}
