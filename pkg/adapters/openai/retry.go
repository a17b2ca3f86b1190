package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/retry"
	"github.com/google/uuid"
)

const defaultDumpDir = "debug_llm_requests"

// isRetryableError retries network failures, rate limits and server errors.
// A 400 means the request itself is wrong (bad image, bad schema) and is
// returned immediately.
func (c *OpenAIClient) isRetryableError(err error, statusCode int, responseBody []byte) bool {
	if statusCode == 0 {
		return err != nil
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}

func (c *OpenAIClient) logger() retry.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Printf
}

// createAndRunRetryableRequest executes an HTTP request with retry logic
func (c *OpenAIClient) createAndRunRetryableRequest(ctx context.Context, url string, requestBody any, apiName string) ([]byte, error) {
	opts := retry.Options{
		Config:      c.RetryConfig,
		ShouldRetry: c.isRetryableError,
		Logger:      c.logger(),
		APIName:     "OpenAI " + apiName,
	}

	body, _, err := retry.Execute(ctx, opts, c.buildRetryableFn(url, requestBody, apiName))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// buildRetryableFn builds one attempt of the request. Each attempt gets its
// own timeout when Timeout is set.
func (c *OpenAIClient) buildRetryableFn(url string, requestBody any, apiName string) func(ctx context.Context, attempt int) retry.Attempt[[]byte] {
	return func(ctx context.Context, attempt int) retry.Attempt[[]byte] {
		body, err := json.Marshal(requestBody)
		if err != nil {
			return retry.Attempt[[]byte]{Err: fmt.Errorf("failed to marshal %s request: %w", apiName, err)}
		}

		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Attempt[[]byte]{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")

		httpClient := c.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return retry.Attempt[[]byte]{Err: err}
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Attempt[[]byte]{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read %s response body: %w", apiName, err)}
		}

		if chatReq, ok := requestBody.(ChatCompletionRequest); c.DumpRequests && ok {
			c.saveResponseToFile(chatReq, bodyBytes, resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			return retry.Attempt[[]byte]{
				StatusCode: resp.StatusCode,
				Body:       bodyBytes,
				Err: &ChatCompletionError{
					Message:    fmt.Sprintf("openai %s API error %d", apiName, resp.StatusCode),
					StatusCode: resp.StatusCode,
					RawBody:    json.RawMessage(bodyBytes),
				},
			}
		}

		return retry.Attempt[[]byte]{Result: bodyBytes, StatusCode: resp.StatusCode, Body: bodyBytes}
	}
}

// saveResponseToFile writes the request/response pair under DumpDir/<model>.
// Image parts are replaced by their size so dumps stay readable.
func (c *OpenAIClient) saveResponseToFile(req ChatCompletionRequest, bodyBytes []byte, statusCode int) {
	dir := c.DumpDir
	if dir == "" {
		dir = defaultDumpDir
	}
	modelDir := filepath.Join(dir, req.Model)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		c.logger()("Error creating directory %s: %v", modelDir, err)
		return
	}

	var responseBody any
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		responseBody = string(bodyBytes)
	}

	jsonData, err := json.MarshalIndent(map[string]any{
		"request":  redactImages(req),
		"response": responseBody,
		"status":   statusCode,
	}, "", "  ")
	if err != nil {
		c.logger()("Error marshaling response data: %v", err)
		return
	}

	filename := fmt.Sprintf("openai_req_%s_%s.json", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	path := filepath.Join(modelDir, filename)
	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		c.logger()("Error writing to file %s: %v", path, err)
	}
}

func redactImages(req ChatCompletionRequest) ChatCompletionRequest {
	msgs := make([]ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m
		if len(m.Parts) == 0 {
			continue
		}
		parts := make([]ContentPart, len(m.Parts))
		for j, p := range m.Parts {
			parts[j] = p
			if p.ImageURL != nil {
				parts[j].ImageURL = &ImageURL{URL: fmt.Sprintf("<%d bytes>", len(p.ImageURL.URL)), Detail: p.ImageURL.Detail}
			}
		}
		msgs[i].Parts = parts
	}
	req.Messages = msgs
	return req
}
