// Package blockapi is the client for the archive's user-blocking endpoints.
package blockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

// maxErrorBody bounds how much of a failed response is read for its error field.
const maxErrorBody = 64 << 10

var tracer = otel.Tracer("github.com/HammerMeetNail/ficarchive-web/internal/blockapi")

var (
	// ErrNoToken is returned before any request is built when the token is empty.
	ErrNoToken = errors.New("no API token")
	// ErrTransport wraps network-level failures (dial, TLS, reset, timeout).
	ErrTransport = errors.New("archive API unreachable")
)

// StatusError is a non-2xx answer from the archive API. Message is the
// response's "error" field and is empty when the body had none.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("archive API returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("archive API returned %d", e.Code)
}

type blockRequest struct {
	BlockType models.BlockKind `json:"block_type"`
	Reason    string           `json:"reason,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to /users/{id}/block on the archive API. It is safe for
// concurrent use by many controls.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client rooted at baseURL (e.g. https://archive.example/api/v1).
// A zero timeout leaves the transport's own behaviour in place.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BlockPath resolves the endpoint path for a target, preferring its user ID.
func BlockPath(target models.BlockTarget) string {
	return "/users/" + target.PathSegment() + "/block"
}

// Block creates a block of the given kind. An empty reason is omitted.
func (c *Client) Block(ctx context.Context, token string, target models.BlockTarget, kind models.BlockKind, reason string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidBlockKind, kind)
	}
	body, err := json.Marshal(blockRequest{BlockType: kind, Reason: reason})
	if err != nil {
		return fmt.Errorf("encoding block request: %w", err)
	}
	resp, err := c.do(ctx, "blockapi.Block", http.MethodPost, token, target, body)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)
	return checkStatus(resp)
}

// Unblock removes any block on the target.
func (c *Client) Unblock(ctx context.Context, token string, target models.BlockTarget) error {
	resp, err := c.do(ctx, "blockapi.Unblock", http.MethodDelete, token, target, nil)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)
	return checkStatus(resp)
}

// Status reads the current block record for the target.
func (c *Client) Status(ctx context.Context, token string, target models.BlockTarget) (models.BlockStatus, error) {
	var status models.BlockStatus
	resp, err := c.do(ctx, "blockapi.Status", http.MethodGet, token, target, nil)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return status, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decoding block status: %w", err)
	}
	if status.Kind != "" && !status.Kind.Valid() {
		return status, fmt.Errorf("%w: %q", models.ErrInvalidBlockKind, status.Kind)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, span, method, token string, target models.BlockTarget, body []byte) (*http.Response, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	path := BlockPath(target)
	ctx, s := tracer.Start(ctx, span)
	defer s.End()
	s.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Bool("target.has_user_id", target.UserID != ""),
	)

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, "transport")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	s.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into a *StatusError carrying the
// body's error field when it parses.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{Code: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return statusErr
	}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		statusErr.Message = strings.TrimSpace(eb.Error)
	}
	return statusErr
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
