package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req["model"])
		messages := req["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Len(t, messages[0].(map[string]any)["images"], 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "llava",
			"message": map[string]any{"role": "assistant", "content": reply},
			"done":    true,
		})
	}))
}

var testImage = base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))

func TestDescribeSlide(t *testing.T) {
	srv := fakeServer(t, `{"title":"Architecture","summary":"Three services","points":["api","worker"]}`)
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	note, err := c.DescribeSlide(context.Background(), "llava", "describe", testImage)
	require.NoError(t, err)
	assert.Equal(t, "Architecture", note.Title)
	assert.Equal(t, []string{"api", "worker"}, note.Points)
}

func TestSimpleQuery(t *testing.T) {
	srv := fakeServer(t, "A title slide")
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	out, err := c.SimpleQuery(context.Background(), "llava", "what is this", testImage)
	require.NoError(t, err)
	assert.Equal(t, "A title slide", out)
}

func TestBadInput(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)

	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "llava", "p", "%%%not-base64")
	assert.Error(t, err)
}
