package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiResponse(text string, tokens int) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				},
			},
		},
		"usageMetadata": map[string]int{"totalTokenCount": tokens},
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateContentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(geminiResponse("# Incident Report\n...", 321))
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	result, err := client.Generate(context.Background(), Request{
		Prompt:     "chemical spill in warehouse B",
		ReportType: "incident",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, "chemical spill in warehouse B")
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, "Report type: incident")
	assert.True(t, strings.HasPrefix(gotBody.Contents[0].Parts[0].Text, "As an HSE"))

	assert.Equal(t, "# Incident Report\n...", result.Text)
	assert.Equal(t, "gemini-1.5-flash", result.Model)
	assert.Equal(t, 321, result.Tokens)
}

func TestGeminiClient_RateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "incident"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls, "rate limiting must not be retried")
}

func TestGeminiClient_ServerErrorSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "audit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, 1, calls, "a transient failure must surface, not multiply provider calls")
}

func TestGeminiClient_NetworkErrorSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "incident"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGeminiClient_BadRequestNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid argument"}`))
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "incident"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1, calls)
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "incident"})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestGeminiClient_MissingTokenCountDefaultsToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := geminiResponse("text", 0)
		delete(resp, "usageMetadata")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	result, err := client.Generate(context.Background(), Request{Prompt: "p", ReportType: "incident"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Tokens)
}
