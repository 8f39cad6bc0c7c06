package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-patient/pkg"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newFakeAPI(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "It hurts when I swallow."}, "finish_reason": "stop"}]
}`

func TestOpenAIClient_Chat(t *testing.T) {
	var got capturedRequest
	srv := newFakeAPI(t, http.StatusOK, completionBody, &got)
	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})

	reply, err := client.Chat(context.Background(), []pkg.Message{
		{Role: pkg.RoleSystem, Content: "You are a patient."},
		{Role: pkg.RoleUser, Content: "Where does it hurt?"},
		{Role: "narrator", Content: "unknown role"},
	}, Params{MaxTokens: 200, Temperature: 0.7})

	require.NoError(t, err)
	assert.Equal(t, "It hurts when I swallow.", reply)
	assert.Equal(t, DefaultChatModel, got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestOpenAIClient_ModelOverride(t *testing.T) {
	var got capturedRequest
	srv := newFakeAPI(t, http.StatusOK, completionBody, &got)
	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	assert.Equal(t, "gpt-4o", client.Model())

	_, err := client.Chat(context.Background(), []pkg.Message{{Role: pkg.RoleUser, Content: "hi"}}, Params{Model: "gpt-4.1-mini"})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", got.Model)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := newFakeAPI(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, nil)
	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})

	_, err := client.Chat(context.Background(), []pkg.Message{{Role: pkg.RoleUser, Content: "hi"}}, Params{})

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := newFakeAPI(t, http.StatusInternalServerError, `{"error":{"message":"upstream exploded","type":"server_error"}}`, nil)
	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"})

	_, err := client.Chat(context.Background(), []pkg.Message{{Role: pkg.RoleUser, Content: "hi"}}, Params{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}
