// Package apiclient talks to a running wgpanel server. The server owns the
// state document and the interface, so command-line tools go through it
// instead of opening the state themselves.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wgpanel/internal/api"
	"wgpanel/internal/models"
)

const DefaultTimeout = 15 * time.Second

// Error is a non-2xx answer, decoded from the server's problem document.
type Error struct {
	Status int
	Title  string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Title)
}

type Client struct {
	baseURL  string
	password string
	client   *http.Client
}

// New returns a client for the server at baseURL, e.g. http://127.0.0.1:51821.
// An empty password sends no Authorization header.
func New(baseURL, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		password: password,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *Client) ListPeers(ctx context.Context) ([]api.PeerDTO, error) {
	var out []api.PeerDTO
	if err := c.doJSON(ctx, http.MethodGet, "/client", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePeer(ctx context.Context, name string) (*api.PeerDTO, error) {
	var out api.PeerDTO
	if err := c.doJSON(ctx, http.MethodPost, "/client", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePeer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/client/"+url.PathEscape(id), nil, nil)
}

func (c *Client) EnablePeer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/client/"+url.PathEscape(id)+"/enable", nil, nil)
}

func (c *Client) DisablePeer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/client/"+url.PathEscape(id)+"/disable", nil, nil)
}

// PeerConfig returns the peer's client configuration file.
func (c *Client) PeerConfig(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/client/"+url.PathEscape(id)+"/configuration", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read configuration: %w", err)
	}
	return string(b), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and turns any non-2xx status into *Error. On
// success the caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/wireguard"+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.password != "" {
		req.Header.Set("Authorization", "Bearer "+c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &Error{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	var p models.Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err == nil {
		if p.Title != "" {
			apiErr.Title = p.Title
		}
		apiErr.Detail = p.Detail
	}
	return nil, apiErr
}
