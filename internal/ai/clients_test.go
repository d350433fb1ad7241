package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClientGenerate(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("secret", "", time.Second)
	c.BaseURL = srv.URL
	text, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "hello", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
}

func TestGeminiClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGeminiClient("k", "m", time.Second)
	c.BaseURL = srv.URL
	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer empty.Close()
	c.BaseURL = empty.URL
	_, err = c.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "no candidates")
}

func TestOpenAIClientGenerate(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"subject\":\"Hi\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "", time.Second)
	c.BaseURL = srv.URL
	text, err := c.Generate(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, `{"subject":"Hi"}`, text)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", "", time.Second)
	c.BaseURL = srv.URL
	_, err := c.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "no choices")
}

func TestOllamaClientGenerate(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "llama3", time.Second)
	text, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
}

func TestGeneratorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "", 50*time.Millisecond)
	_, err := c.Generate(context.Background(), "p")
	assert.Error(t, err)
}
