package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate_SingleResponse(t *testing.T) {
	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "hello there", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "nomic-embed-text")
	text, err := client.Generate(context.Background(), &GenerateRequest{
		Prompt: "say hello",
		System: "be brief",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, "llama3", gotReq.Model)
	assert.Equal(t, "be brief", gotReq.System)
	assert.False(t, gotReq.Stream)
}

func TestOllamaGenerate_ConcatenatesJSONLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"response":"hel","done":false}`)
		fmt.Fprintln(w, `{"response":"lo","done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "")
	text, err := client.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestOllamaGenerate_HTTPErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "")
	_, err := client.Generate(context.Background(), &GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaGenerate_TemperatureInOptions(t *testing.T) {
	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "")
	_, err := client.Generate(context.Background(), &GenerateRequest{Prompt: "hi", Temperature: 0.7})
	require.NoError(t, err)
	require.NotNil(t, gotReq.Options)
	assert.Equal(t, 0.7, gotReq.Options["temperature"])
}

func TestOllamaGenerateStream_DeliversChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		fmt.Fprintln(w, `{"response":"one ","done":false}`)
		fmt.Fprintln(w, `{"response":"two","done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "")
	var chunks []string
	err := client.GenerateStream(context.Background(), &GenerateRequest{Prompt: "count"}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two"}, chunks)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "nomic-embed-text")
	embedding, err := client.Embed(context.Background(), "brake pads")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestOllamaEmbed_EmptyEmbeddingIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3", "nomic-embed-text")
	_, err := client.Embed(context.Background(), "brake pads")
	assert.Error(t, err)
}
