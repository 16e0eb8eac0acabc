// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the REST side of the backend: session minting, document
// upload, and feedback/escalation submissions. Streaming endpoints live
// in the stream package.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("assistant backend unavailable")

	// ErrNoFiles indicates an upload was requested with no file paths.
	ErrNoFiles = errors.New("no files to upload")
)

// APIError reports a non-success HTTP status from a REST endpoint.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s failed (HTTP %d): %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("%s failed (HTTP %d)", e.Endpoint, e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

const (
	requestTimeout = 30 * time.Second

	// uploadTimeout is longer: multi-megabyte PDFs over slow links.
	uploadTimeout = 5 * time.Minute

	maxErrorBody = 8 * 1024
)

// sharedHTTPClient is used for all REST requests.
// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
var sharedHTTPClient = &http.Client{
	Timeout: requestTimeout,
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

// sharedUploadClient mirrors sharedHTTPClient with the longer timeout.
var sharedUploadClient = &http.Client{
	Timeout:   uploadTimeout,
	Transport: sharedHTTPClient.Transport,
}

// Client talks to the backend's REST endpoints.
type Client struct {
	baseURL string
	httpc   *http.Client
	uploadc *http.Client
	logger  *zap.Logger
}

// NewClient creates a REST client for the given backend base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   sharedHTTPClient,
		uploadc: sharedUploadClient,
		logger:  logger,
	}
}

// WithHTTPClient overrides both HTTP clients (tests).
func (c *Client) WithHTTPClient(httpc *http.Client) *Client {
	c.httpc = httpc
	c.uploadc = httpc
	return c
}

// postJSON sends a JSON body and decodes a JSON response into out (out
// may be nil for fire-and-forget endpoints).
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession mints a new conversation session on the backend.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, "/api/sessions", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("session endpoint returned empty session_id")
	}
	c.logger.Debug("session created", zap.String("session_id", resp.SessionID))
	return resp.SessionID, nil
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadResult is the backend's per-file upload outcome. A missing
// TaskID signals immediate failure for that file.
type UploadResult struct {
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
	BlobName string `json:"blob_name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the file was rejected before ingestion started.
func (r UploadResult) Failed() bool {
	return r.TaskID == "" || r.Error != ""
}

// Upload submits one or more local files as a multipart request and
// returns the backend's per-file outcomes in submission order.
func (c *Client) Upload(ctx context.Context, paths []string) ([]UploadResult, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to write %s into upload: %w", path, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploadc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Endpoint: "/api/upload", Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var results []UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	c.logger.Info("upload submitted",
		zap.Int("files", len(paths)), zap.Int("results", len(results)))
	return results, nil
}

// =============================================================================
// FEEDBACK & ESCALATION
// =============================================================================

// Feedback is a thumbs rating for one answered query.
type Feedback struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	Thumbs    string `json:"thumbs"`
}

// Escalation reports an unanswered or badly answered query.
type Escalation struct {
	Query       string `json:"query"`
	AnswerGiven string `json:"answer_given"`
	SessionID   string `json:"session_id"`
	Comment     string `json:"comment,omitempty"`
	GapType     string `json:"gap_type"`
}

// SendFeedback submits a thumbs rating. Fire-and-forget at the caller;
// the error is for logging only.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	return c.postJSON(ctx, "/api/feedback", fb, nil)
}

// Escalate submits an escalation record.
func (c *Client) Escalate(ctx context.Context, esc Escalation) error {
	return c.postJSON(ctx, "/api/escalate", esc, nil)
}
