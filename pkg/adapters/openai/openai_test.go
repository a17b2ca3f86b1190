package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/retry"
)

func quietLogger(string, ...any) {}

func newTestClient(serverURL string, retries int) *OpenAIClient {
	return &OpenAIClient{
		APIKey:      "test-key",
		BaseURL:     serverURL,
		HTTPClient:  http.DefaultClient,
		RetryConfig: retry.Config{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiple: 1},
		Logger:      quietLogger,
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	resp := ChatCompletionResponse{
		ID:     "test-id",
		Object: "chat.completion",
		Choices: []ChatCompletionChoice{
			{
				Message:      ChatMessage{Role: MessageRoleAssistant, Content: &content},
				FinishReason: "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	if client.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey %q, got %q", "test-api-key", client.APIKey)
	}
	if client.HTTPClient == nil {
		t.Error("Expected HTTPClient to be initialized")
	}
	if client.BaseURL != openaiBaseURL {
		t.Errorf("Expected default base URL, got %q", client.BaseURL)
	}
	if client.RetryConfig.MaxRetries == 0 {
		t.Error("Expected RetryConfig to be initialized with defaults")
	}
}

func TestChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header with Bearer token")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json")
		}
		writeCompletion(w, `{"candidates": []}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	prompt := "test prompt"
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: MessageRoleUser, Content: &prompt}},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(resp.Choices) != 1 || *resp.Choices[0].Message.Content != `{"candidates": []}` {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestChatCompletion_MultimodalRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		msgs := raw["messages"].([]any)
		system := msgs[0].(map[string]any)
		if _, isString := system["content"].(string); !isString {
			t.Errorf("Expected plain string content for system message, got %T", system["content"])
		}

		user := msgs[1].(map[string]any)
		parts, ok := user["content"].([]any)
		if !ok || len(parts) != 2 {
			t.Fatalf("Expected two content parts, got %v", user["content"])
		}
		image := parts[1].(map[string]any)
		if image["type"] != "image_url" {
			t.Errorf("Expected image_url part, got %v", image["type"])
		}
		url := image["image_url"].(map[string]any)["url"].(string)
		if url != "data:image/png;base64,AQID" {
			t.Errorf("Unexpected data URL %q", url)
		}

		format := raw["response_format"].(map[string]any)
		if format["type"] != ResponseFormatJSONSchema {
			t.Errorf("Expected json_schema response format, got %v", format["type"])
		}
		writeCompletion(w, "{}")
	}))
	defer server.Close()

	system := "system"
	client := newTestClient(server.URL, 0)
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: MessageRoleSystem, Content: &system},
			{Role: MessageRoleUser, Parts: []ContentPart{TextPart("find shoes"), ImagePart([]byte{1, 2, 3}, "image/png")}},
		},
		ResponseFormat: &ResponseFormat{
			Type:       ResponseFormatJSONSchema,
			JsonSchema: &JsonSchemaObject{Name: "detection", Strict: true, Schema: map[string]any{"type": "object"}},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestChatMessage_RoundTrip(t *testing.T) {
	text := "hello"
	for _, msg := range []ChatMessage{
		{Role: MessageRoleUser, Content: &text},
		{Role: MessageRoleUser, Parts: []ContentPart{TextPart("a"), ImagePart([]byte("x"), "image/jpeg")}},
		{Role: MessageRoleAssistant},
	} {
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got ChatMessage
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if (got.Content == nil) != (msg.Content == nil) || len(got.Parts) != len(msg.Parts) {
			t.Errorf("round trip mismatch for %s: %+v", data, got)
		}
	}
}

func TestChatCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})

	var chatErr *ChatCompletionError
	if !errors.As(err, &chatErr) {
		t.Fatalf("Expected ChatCompletionError, got %v", err)
	}
	if chatErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", chatErr.StatusCode)
	}
	if !strings.Contains(string(chatErr.GetRawResponseBody()), "bad key") {
		t.Error("Expected error body to be captured")
	}
}

func TestChatCompletion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{invalid json}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 0).ChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	var chatErr *ChatCompletionError
	if !errors.As(err, &chatErr) {
		t.Fatalf("Expected ChatCompletionError, got %v", err)
	}
	if !strings.Contains(chatErr.Message, "failed to parse") {
		t.Errorf("Unexpected message %q", chatErr.Message)
	}
}

func TestChatCompletion_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, 3).ChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if *resp.Choices[0].Message.Content != "ok" {
		t.Errorf("Unexpected content")
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestChatCompletion_DoesNotRetryBadRequest(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid image"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).ChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts.Load())
	}
}

func TestChatCompletion_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	client.Timeout = 20 * time.Millisecond
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "gpt-4o"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestIsRetryableError(t *testing.T) {
	client := NewClient("test-key")

	testCases := []struct {
		name        string
		err         error
		statusCode  int
		shouldRetry bool
	}{
		{"network error", http.ErrHandlerTimeout, 0, true},
		{"500 Internal Server Error", errors.New("x"), 500, true},
		{"502 Bad Gateway", errors.New("x"), 502, true},
		{"503 Service Unavailable", errors.New("x"), 503, true},
		{"429 Rate Limit", errors.New("x"), 429, true},
		{"400 Bad Request", errors.New("x"), 400, false},
		{"401 Unauthorized", errors.New("x"), 401, false},
		{"404 Not Found", errors.New("x"), 404, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := client.isRetryableError(tc.err, tc.statusCode, nil); got != tc.shouldRetry {
				t.Errorf("Expected retry=%v for status %d, got %v", tc.shouldRetry, tc.statusCode, got)
			}
		})
	}
}

func TestBuildRetryableFn_InvalidRequestBody(t *testing.T) {
	client := NewClient("test-key")

	attempt := client.buildRetryableFn("http://example.com", make(chan int), "test")(context.Background(), 0)
	if attempt.Err == nil || !strings.Contains(attempt.Err.Error(), "failed to marshal") {
		t.Errorf("Expected marshal error, got: %v", attempt.Err)
	}
}

func TestBuildRetryableFn_WithDumpRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	client.DumpRequests = true
	client.DumpDir = t.TempDir()

	req := ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: MessageRoleUser, Parts: []ContentPart{ImagePart(make([]byte, 1024), "image/jpeg")}}},
	}
	attempt := client.buildRetryableFn(server.URL, req, "chat")(context.Background(), 0)
	if attempt.Err != nil {
		t.Fatalf("Expected no error, got: %v", attempt.Err)
	}

	files, err := filepath.Glob(filepath.Join(client.DumpDir, "gpt-4o", "openai_req_*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected one dump file, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "base64") {
		t.Error("Expected image data to be redacted from the dump")
	}
}

func TestChatCompletionError_Error(t *testing.T) {
	err := &ChatCompletionError{
		Message:    "test error",
		StatusCode: 500,
		RawBody:    json.RawMessage(`{"error": "details"}`),
	}

	if err.Error() != "test error" {
		t.Errorf("Expected error message %q, got %q", "test error", err.Error())
	}
}
