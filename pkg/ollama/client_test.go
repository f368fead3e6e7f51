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

func TestSimpleQuery(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"{\"objects\":[]}"},"done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	reply, err := c.SimpleQuery(context.Background(), "llava", "find things", base64.StdEncoding.EncodeToString([]byte("img")))
	require.NoError(t, err)
	assert.Equal(t, `{"objects":[]}`, reply)

	assert.Equal(t, "llava", got["model"])
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "find things", msg["content"])
	assert.Len(t, msg["images"], 1)
}

func TestSimpleQueryEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":""},"done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "llava", "p", "")
	assert.ErrorContains(t, err, "empty response")
}

func TestSimpleQueryBadImage(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:11434")
	require.NoError(t, err)
	_, err = c.SimpleQuery(context.Background(), "llava", "p", "%%%")
	assert.ErrorContains(t, err, "base64")
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)
}

func TestModelOptions(t *testing.T) {
	assert.Equal(t, 0.0, modelOptions("llava:13b")["temperature"])
	opts := modelOptions("openbmb/MiniCPM-V4:latest")
	assert.Equal(t, 4096, opts["num_ctx"])
}
