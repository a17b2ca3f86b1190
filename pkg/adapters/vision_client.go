package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/retry"
	"github.com/FrenchMajesty/shoewall/pkg/adapters/openai"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

// DefaultVisionClient implements vision.DetectionClient using the OpenAI chat API
type DefaultVisionClient struct {
	client       openai.LanguageModelClient
	systemPrompt string
	model        string
	maxTokens    int
}

const defaultVisionModel = "gpt-4o-mini"
const defaultMaxTokens = 2000
const defaultSystemPrompt = `You are a retail shoe recognition assistant. You only answer with JSON that matches the requested schema.`

// VisionClientConfig configures DefaultVisionClient
type VisionClientConfig struct {
	APIKey string
	// Model defaults to gpt-4o-mini
	Model   string
	BaseURL string
	// MaxRetries is the number of retries after the first attempt. Negative
	// values keep the transport default.
	MaxRetries int
	Timeout    time.Duration
	// DumpRequests writes every request/response pair under DumpDir
	DumpRequests bool
	DumpDir      string
	Logger       retry.Logger
}

var _ vision.DetectionClient = (*DefaultVisionClient)(nil)

// NewDefaultVisionClient creates a detection client backed by OpenAI
func NewDefaultVisionClient(cfg VisionClientConfig) (*DefaultVisionClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required for live detection")
	}

	client := openai.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	if cfg.MaxRetries >= 0 {
		client.RetryConfig.MaxRetries = cfg.MaxRetries
	}
	client.Timeout = cfg.Timeout
	client.DumpRequests = cfg.DumpRequests
	client.DumpDir = cfg.DumpDir
	client.Logger = cfg.Logger

	instance := DefaultVisionClient{
		client:       client,
		systemPrompt: defaultSystemPrompt,
		model:        defaultVisionModel,
		maxTokens:    defaultMaxTokens,
	}
	if cfg.Model != "" {
		instance.model = cfg.Model
	}

	return &instance, nil
}

// Detect sends the image with the instruction and returns the raw response text
func (c *DefaultVisionClient) Detect(ctx context.Context, req vision.DetectionRequest) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.MessageRoleSystem,
				Content: &c.systemPrompt,
			},
			{
				Role: openai.MessageRoleUser,
				Parts: []openai.ContentPart{
					openai.TextPart(req.Instruction),
					openai.ImagePart(req.Image, req.MimeType),
				},
			},
		},
		MaxCompletionTokens: c.maxTokens,
		// min/max bounds are not allowed in strict mode, so the schema is
		// advisory and the response is validated locally.
		ResponseFormat: &openai.ResponseFormat{
			Type: openai.ResponseFormatJSONSchema,
			JsonSchema: &openai.JsonSchemaObject{
				Name:   "shoe_wall_detection",
				Strict: false,
				Schema: schema.DetectionJSONSchema(req.MaxCandidates),
			},
		},
	}

	resp, err := c.client.ChatCompletion(ctx, chatReq)
	if err != nil {
		return "", &types.UpstreamError{Op: "detect", Status: statusOf(err), Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", &types.UpstreamError{Op: "detect", Err: fmt.Errorf("no response from model")}
	}

	return *resp.Choices[0].Message.Content, nil
}

// statusOf digs the last HTTP status out of a transport error
func statusOf(err error) int {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) && exhausted.LastStatusCode > 0 {
		return exhausted.LastStatusCode
	}
	var chatErr *openai.ChatCompletionError
	if errors.As(err, &chatErr) {
		return chatErr.StatusCode
	}
	return 0
}
