package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow/internal/common/config"
	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, handler func(body map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, resp := handler(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
}

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:   url,
		APIKey:    "test-key",
		Model:     "llama3-70b-8192",
		MaxTokens: 256,
		Timeout:   5000,
	}
}

func TestClient_Infer(t *testing.T) {
	srv := completionServer(t, func(body map[string]interface{}) (int, string) {
		assert.Equal(t, "llama3-70b-8192", body["model"])
		messages := body["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
		assert.Equal(t, "be terse", messages[0].(map[string]interface{})["content"])
		assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
		assert.EqualValues(t, 256, body["max_tokens"])

		return http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama3-70b-8192",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"action\":\"final\",\"response\":\"done\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`
	})
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), logger.NewTestLogger(t), option.WithMaxRetries(0))
	require.NoError(t, err)

	out, err := client.Infer(context.Background(), "be terse", "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"final","response":"done"}`, out)
}

func TestClient_InferErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := completionServer(t, func(map[string]interface{}) (int, string) {
			return http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`
		})
		defer srv.Close()

		client, err := NewClient(testConfig(srv.URL), logger.NewTestLogger(t), option.WithMaxRetries(0))
		require.NoError(t, err)

		_, err = client.Infer(context.Background(), "s", "u")
		var stdErr *apperrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, apperrors.ErrCodeLLMRequestFailed, stdErr.Code)
	})

	t.Run("no choices", func(t *testing.T) {
		srv := completionServer(t, func(map[string]interface{}) (int, string) {
			return http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`
		})
		defer srv.Close()

		client, err := NewClient(testConfig(srv.URL), logger.NewTestLogger(t), option.WithMaxRetries(0))
		require.NoError(t, err)

		_, err = client.Infer(context.Background(), "s", "u")
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.Timeout = 50
		client, err := NewClient(cfg, logger.NewTestLogger(t), option.WithMaxRetries(0))
		require.NoError(t, err)

		_, err = client.Infer(context.Background(), "s", "u")
		var stdErr *apperrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, apperrors.ErrCodeLLMTimeout, stdErr.Code)
	})
}

func TestNewClient_RequiresKeyAndModel(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Model: "m"}, logger.NewNoOpLogger())
	assert.Error(t, err)
	_, err = NewClient(config.LLMConfig{APIKey: "k"}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestInferFunc(t *testing.T) {
	var inf Inferer = InferFunc(func(ctx context.Context, system, user string) (string, error) {
		return system + "|" + user, nil
	})
	out, err := inf.Infer(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a|b", out)
}
