package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    string
		wantText   string
		wantCites  []string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"values\":{}}"}}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5},
				"citations": ["https://www.amazon.it/dp/1", "https://blog.example.com"]
			}`,
			wantText:  `{"values":{}}`,
			wantCites: []string{"https://www.amazon.it/dp/1", "https://blog.example.com"},
		},
		{
			name:       "rate_limit",
			status:     http.StatusTooManyRequests,
			body:       `{"error": "rate limit exceeded"}`,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error": "invalid key"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := NewClient("test-key", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})

			switch {
			case tt.wantStatus != 0:
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.wantStatus, se.StatusCode)
				assert.Contains(t, se.Error(), tt.body)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, "cmpl-123", resp.ID)
				assert.Equal(t, tt.wantText, resp.Text())
				assert.Equal(t, tt.wantCites, resp.Citations)
				assert.Equal(t, 10, resp.Usage.PromptTokens)
			}
		})
	}
}

func TestDefaultAndOverrideModel(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req ChatCompletionRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		models = append(models, req.Model)
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(ctx, ChatCompletionRequest{})
	require.NoError(t, err)
	_, err = NewClient("k", WithBaseURL(srv.URL), WithModel("sonar")).ChatCompletion(ctx, ChatCompletionRequest{})
	require.NoError(t, err)
	resp, err := NewClient("k", WithBaseURL(srv.URL), WithModel("")).ChatCompletion(ctx, ChatCompletionRequest{Model: "sonar-reasoning"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sonar-pro", "sonar", "sonar-reasoning"}, models)
	assert.Empty(t, resp.Text())
}

func TestRetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(context.Background(), ChatCompletionRequest{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 7*time.Second, se.RetryAfter)

	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient("k", WithBaseURL(srv.URL)).ChatCompletion(ctx, ChatCompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
