// Package platform is the HTTP client for the remote telehealth platform
// API. It covers the two calls the intake pipeline needs: the per-document
// upload and the final submit-for-verification.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Config configures the platform API client.
type Config struct {
	BaseURL string
	// Ambient session credentials, carried as a cookie on every call.
	SessionCookieName  string
	SessionCookieValue string
	// Overall per-request timeout. Zero defers to transport defaults.
	Timeout time.Duration
}

// Error is a failed platform API call: transport failure, non-2xx status or
// malformed response envelope. Message holds the server-provided message
// when one was present.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("platform api: request failed (status %d)", e.StatusCode)
}

// ServerMessage returns the server-provided failure message, if any.
func (e *Error) ServerMessage() string {
	return e.Message
}

// envelope is the platform API's success/failure wrapper.
type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Message string `json:"message"`
}

// Client talks to the platform API with ambient cookie credentials.
type Client struct {
	http    *http.Client
	baseURL *url.URL
}

// NewClient creates a platform API client. The session cookie, when
// configured, is seeded into the client's jar for the API host.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid platform base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid platform base URL: %q", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if cfg.SessionCookieName != "" {
		jar.SetCookies(base, []*http.Cookie{{
			Name:  cfg.SessionCookieName,
			Value: cfg.SessionCookieValue,
			Path:  "/",
		}})
	}

	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		baseURL: base,
	}, nil
}

// Upload sends one document as multipart form data ("file" bytes plus the
// "kind" slot identifier) and returns the stable remote location from the
// response envelope.
func (c *Client) Upload(ctx context.Context, kind, fileName, mimeType string, r io.Reader) (string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("kind", kind); err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/provider/documents/upload"), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	env, err := c.do(req)
	if err != nil {
		return "", err
	}
	if env.Data.URL == "" {
		return "", &Error{StatusCode: http.StatusOK, Message: "response missing document location"}
	}
	return env.Data.URL, nil
}

// Finalize submits the uploaded document set for verification. The call has
// no body; the platform acts on the session identity.
func (c *Client) Finalize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/provider/verification/submit"), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do executes the request and normalizes transport, status and envelope
// failures into *Error.
func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "malformed response"}
	}
	if !env.Success {
		return nil, &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}
