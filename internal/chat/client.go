package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketmate/marketmate/internal/layout"
)

// Request is the payload both assistant endpoints accept.
type Request struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// InvokeResponse is the non-streaming endpoint's reply.
type InvokeResponse struct {
	ThreadID   string                     `json:"thread_id"`
	Content    string                     `json:"content"`
	UsedTools  []string                   `json:"used_tools,omitempty"`
	Metadata   map[string]any             `json:"metadata,omitempty"`
	Structured *layout.StructuredResponse `json:"structured,omitempty"`
}

// Transport is the assistant API surface the orchestrator depends on.
// Stream opens the SSE endpoint and hands back the raw body; Invoke is the
// synchronous fallback.
type Transport interface {
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)
	Invoke(ctx context.Context, req Request) (*InvokeResponse, error)
}

const (
	streamPath = "/api/chat/stream"
	invokePath = "/api/chat"

	// defaultInvokeTimeout bounds the fallback request only. The stream
	// itself has no timeout: the one-shot fallback is the sole recovery
	// from an unproductive stream.
	defaultInvokeTimeout = 60 * time.Second
)

// Client is the HTTP implementation of Transport.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	invokeTimeout time.Duration
}

// NewClient creates an assistant API client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("assistant base URL is required")
	}
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{},
		invokeTimeout: defaultInvokeTimeout,
	}, nil
}

// Stream opens the streaming chat endpoint. The caller owns the returned
// body and must close it; reads yield raw SSE text for the frame decoder.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, streamPath, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Invoke calls the synchronous chat endpoint.
func (c *Client) Invoke(ctx context.Context, req Request) (*InvokeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, invokePath, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoke chat: unexpected status %d", resp.StatusCode)
	}

	var out InvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, path string, req Request) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// Compile-time interface verification.
var _ Transport = (*Client)(nil)
