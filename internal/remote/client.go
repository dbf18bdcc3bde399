package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	appLog "eventflow/internal/log"
	"eventflow/internal/model"
)

// ErrRemoteUnavailable covers every way the upstream can fail: transport
// errors, timeouts, non-2xx responses and undecodable bodies.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 4 << 20

// Client talks to the upstream events backend. Positions on the wire are
// 1-based; Client methods take 0-based store positions.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a Client for baseURL (e.g. "http://127.0.0.1:9090").
// Per-call deadlines come from the caller's context; the http.Client timeout
// is only an upper bound.
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("remote: base url has no host")
	}
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// List fetches the full ordered collection.
func (c *Client) List(ctx context.Context) ([]model.Event, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return nil, err
	}
	var events []model.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("%w: decode events: %v", ErrRemoteUnavailable, err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

type createRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        model.Date `json:"date"`
}

func (c *Client) Create(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(createRequest{Title: ev.Title, Description: ev.Description, Date: ev.Date})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/api/events/add", payload)
	return err
}

type indexRequest struct {
	Index int `json:"index"`
}

func (c *Client) Complete(ctx context.Context, position int) error {
	payload, err := json.Marshal(indexRequest{Index: position + 1})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/api/events/complete", payload)
	return err
}

func (c *Client) Delete(ctx context.Context, position int) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/events/delete?index="+strconv.Itoa(position+1), nil)
	return err
}

func (c *Client) Undo(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/events/undo", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	appLog.Debug("remote request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRemoteUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %v", ErrRemoteUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrRemoteUnavailable, method, path, resp.Status)
	}
	return data, nil
}
