package llamacpp

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

func fakeServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 1) {
			parts := req.Messages[0].Content
			if assert.Len(t, parts, 2) {
				assert.Equal(t, "image_url", parts[1].Type)
				assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}, "finish_reason": "stop"},
			},
		})
	}))
}

func TestDescribeSlide(t *testing.T) {
	srv := fakeServer(t, "```json\n{\"title\":\"Q3 results\",\"summary\":\"Revenue grew\"}\n```")
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)

	note, err := c.DescribeSlide(context.Background(), "minicpm", "describe", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "Q3 results", note.Title)
	assert.Equal(t, "Revenue grew", note.Summary)
}

func TestSimpleQuery(t *testing.T) {
	srv := fakeServer(t, "A diagram")
	defer srv.Close()

	c, err := NewClient(srv.URL + "/v1")
	require.NoError(t, err)

	out, err := c.SimpleQuery(context.Background(), "minicpm", "what", "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "A diagram", out)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SimpleQuery(context.Background(), "minicpm", "what", "aGVsbG8=")
	assert.Error(t, err)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("localhost:8080")
	assert.Error(t, err)

	_, err = NewClient("")
	assert.NoError(t, err)
}
