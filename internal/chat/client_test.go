package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Stream(t *testing.T) {
	t.Parallel()

	const body = "event: status\ndata: {\"message\": \"thinking\"}\n\n"

	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, streamPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	rc, err := client.Stream(context.Background(), Request{Message: "hi", ThreadID: "t1"})
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, "hi", gotReq.Message)
	assert.Equal(t, "t1", gotReq.ThreadID)
}

func TestClient_StreamBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), Request{Message: "hi"})
	assert.Error(t, err, "a 502 must not hand back a stream")
}

func TestClient_Invoke(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, invokePath, r.URL.Path)
		json.NewEncoder(w).Encode(InvokeResponse{
			ThreadID:  "t1",
			Content:   "Bitcoin is flat.",
			UsedTools: []string{"get_price"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	resp, err := client.Invoke(context.Background(), Request{Message: "btc?"})
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin is flat.", resp.Content)
	assert.Equal(t, []string{"get_price"}, resp.UsedTools)
}

func TestClient_InvokeBadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), Request{Message: "hi"})
	assert.Error(t, err, "a non-JSON body must be rejected")
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("")
	assert.Error(t, err)
}
