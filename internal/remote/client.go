// Package remote talks to the layout store over HTTP/JSON and normalizes its
// payloads at the boundary.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"liner-layout/internal/panel"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// Client is a bearer-token client for one layout store.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL. A nil httpClient gets a default one
// with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// SetToken installs the session token. An empty token logs out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// IsAuthenticated reports whether a session token is present.
func (c *Client) IsAuthenticated() bool {
	return c.Token() != ""
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a session token and installs it.
func (c *Client) Login(ctx context.Context, login, password string) error {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/login", loginRequest{Login: login, Password: password}, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login: %w: empty token", ErrAuthExpired)
	}
	c.SetToken(resp.Token)
	return nil
}

// FetchLayout returns the normalized panels of a project. Malformed entries
// are skipped.
func (c *Client) FetchLayout(ctx context.Context, project string) ([]panel.Panel, error) {
	var resp LayoutResponse
	if err := c.do(ctx, http.MethodGet, projectPath(project, "layout"), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch layout %s: %w", project, err)
	}
	return DecodeLayout(resp), nil
}

// CreatePanel creates p remotely and returns the stored panel with its
// server id.
func (c *Client) CreatePanel(ctx context.Context, project string, p panel.Panel) (panel.Panel, error) {
	body := FromPanel(p)
	body.ID = ""
	var created PanelDTO
	if err := c.do(ctx, http.MethodPost, projectPath(project, "panels"), body, &created); err != nil {
		return panel.Panel{}, fmt.Errorf("create panel: %w", err)
	}
	out, err := Normalize(created)
	if err != nil {
		return panel.Panel{}, fmt.Errorf("create panel: %w", err)
	}
	return out, nil
}

// MovePanel sends a position update. The returned panel is the server's echo;
// its ID is empty when the server answered without a body.
func (c *Client) MovePanel(ctx context.Context, project, id string, pos panel.Position) (panel.Panel, error) {
	req := MoveRequest{X: pos.X, Y: pos.Y, RotationDeg: pos.Rotation}
	var echo PanelDTO
	if err := c.do(ctx, http.MethodPatch, projectPath(project, "panels", id), req, &echo); err != nil {
		return panel.Panel{}, fmt.Errorf("move panel %s: %w", id, err)
	}
	if echo.ID == "" {
		return panel.Panel{}, nil
	}
	out, err := Normalize(echo)
	if err != nil {
		return panel.Panel{}, fmt.Errorf("move panel %s: %w", id, err)
	}
	return out, nil
}

// DeletePanel deletes a panel remotely.
func (c *Client) DeletePanel(ctx context.Context, project, id string) error {
	if err := c.do(ctx, http.MethodDelete, projectPath(project, "panels", id), nil, nil); err != nil {
		return fmt.Errorf("delete panel %s: %w", id, err)
	}
	return nil
}

func projectPath(project string, parts ...string) string {
	var b strings.Builder
	b.WriteString("/projects/")
	b.WriteString(url.PathEscape(project))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Printf("remote: %s %s: %v", method, path, err)
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return statusError(resp.StatusCode, eb.Error)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrInvalidPanel, err)
	}
	return nil
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
