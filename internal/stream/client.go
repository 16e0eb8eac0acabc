// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// STREAMING CLIENT
// =============================================================================

const (
	// DefaultTopK is the retrieval depth sent with every chat turn.
	DefaultTopK = 5

	// maxErrorBody caps how much of a failed response body is read for
	// error reporting.
	maxErrorBody = 8 * 1024
)

var (
	// ErrUnavailable indicates the backend could not be reached or
	// rejected the request before any frames arrived.
	ErrUnavailable = errors.New("assistant backend unavailable")
)

// StatusError reports a non-success HTTP status on stream open.
type StatusError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("stream request failed (HTTP %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("stream request failed (HTTP %d)", e.Status)
}

// Is allows StatusError to match ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

// sharedStreamingClient is used for all stream requests. No client
// timeout: stream lifetime is controlled via context.
// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// Client opens event streams against the backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
	topK    int
}

// NewClient creates a streaming client for the given backend base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   sharedStreamingClient,
		logger:  logger,
		topK:    DefaultTopK,
	}
}

// WithHTTPClient overrides the HTTP client (tests).
func (c *Client) WithHTTPClient(httpc *http.Client) *Client {
	c.httpc = httpc
	return c
}

// WithTopK overrides the retrieval depth.
func (c *Client) WithTopK(topK int) *Client {
	if topK > 0 {
		c.topK = topK
	}
	return c
}

// =============================================================================
// CHAT STREAM (request/response shape)
// =============================================================================

// ChatRequest is one conversational turn.
type ChatRequest struct {
	SessionID string
	Query     string

	// DocTypes filters retrieval by document category. Empty means no
	// filter; the field is omitted entirely from the request.
	DocTypes []string
}

// chatRequestBody is the wire shape of a chat-stream request.
type chatRequestBody struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	DocTypes  string `json:"doc_types,omitempty"`
}

// openChat sends the chat-stream request, returning the open response on
// HTTP 200 and a typed error otherwise.
func (c *Client) openChat(ctx context.Context, req ChatRequest) (*http.Response, error) {
	body := chatRequestBody{
		SessionID: req.SessionID,
		Query:     req.Query,
		TopK:      c.topK,
		DocTypes:  strings.Join(req.DocTypes, ","),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.logger.Warn("chat stream open failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		c.logger.Warn("chat stream rejected", zap.Int("status", resp.StatusCode))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// ChatStream opens a chat event stream and dispatches frames to the
// handler synchronously as they are decoded. The handler always observes
// exactly one terminal event unless the request itself fails before any
// frame could arrive, in which case an error is returned and the handler
// sees nothing.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, h Handler) error {
	resp, err := c.openChat(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return ReadChat(ctx, resp.Body, h)
}

// ChatEvents opens a chat stream and delivers its events as a channel of
// tagged-union values, preserving arrival order. The channel is closed
// after the terminal event. Errors opening the stream are returned before
// any goroutine starts; the channel contract above still guarantees
// exactly one terminal event once a channel is returned.
func (c *Client) ChatEvents(ctx context.Context, req ChatRequest) (<-chan Event, error) {
	events := make(chan Event, 64)

	forward := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	h := Handler{
		OnToken:     func(tok string) { forward(Event{Type: EventToken, Token: tok}) },
		OnRetrieval: func(p *RetrievalPayload) { forward(Event{Type: EventRetrieval, Retrieval: p}) },
		OnDone:      func(p *DonePayload) { forward(Event{Type: EventDone, Done: p, Synthetic: p == nil}) },
		OnError:     func(msg string) { forward(Event{Type: EventError, Message: msg}) },
	}

	// Open synchronously so transport failures surface to the caller
	// instead of racing the first read.
	resp, err := c.openChat(ctx, req)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(events)
		defer resp.Body.Close()
		_ = ReadChat(ctx, resp.Body, h)
	}()

	return events, nil
}

// =============================================================================
// TASK STREAM (subscription shape)
// =============================================================================

// SubscribeTask opens the per-task status stream. Events are delivered on
// the returned channel, which is closed after the terminal event (or the
// synthetic completion). Cancel the context to drop the subscription and
// close the underlying connection.
func (c *Client) SubscribeTask(ctx context.Context, taskID string) (<-chan TaskEvent, error) {
	endpoint := c.baseURL + "/api/tasks/" + url.PathEscape(taskID) + "/stream"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create task stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.logger.Warn("task stream open failed",
			zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	events := make(chan TaskEvent, 16)
	go func() {
		defer resp.Body.Close()
		_ = ReadTask(ctx, resp.Body, events)
	}()

	return events, nil
}
