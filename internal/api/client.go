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
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAuthExpired means the access token was rejected and a refresh either
// failed or was rejected too. The caller must take the user back to login.
var ErrAuthExpired = errors.New("authentication expired, login required")

// Error is a non-2xx API reply.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}

// NotFound reports whether the server said the addressed resource is gone.
func (e *Error) NotFound() bool { return e.Status == http.StatusNotFound }

// refreshSkew is how close to expiry an access token may get before we
// refresh it ahead of a call instead of waiting for a 401.
const refreshSkew = 30 * time.Second

// Client is the authenticated HTTP transport for the therapy platform API.
// All tokens pass through TokenHook so the config file stays current.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// TokenHook, when set, is called after every token change.
	TokenHook func(access, refresh string)

	log *zap.Logger

	mu      sync.Mutex
	access  string
	refresh string
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	// Skip TLS verification if THERAPYCTL_SKIP_TLS_VERIFY is set (for container environments)
	if os.Getenv("THERAPYCTL_SKIP_TLS_VERIFY") == "1" || os.Getenv("THERAPYCTL_SKIP_TLS_VERIFY") == "true" {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		log:     log,
	}
}

// SetTokens installs the current token pair, e.g. from the config file.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	c.access = access
	c.refresh = refresh
	c.mu.Unlock()
}

func (c *Client) tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refresh
}

func (c *Client) storeTokens(access, refresh string) {
	c.mu.Lock()
	c.access = access
	if refresh != "" {
		c.refresh = refresh
	}
	refresh = c.refresh
	c.mu.Unlock()
	if c.TokenHook != nil {
		c.TokenHook(access, refresh)
	}
}

func (c *Client) clearTokens() {
	c.mu.Lock()
	c.access = ""
	c.refresh = ""
	c.mu.Unlock()
	if c.TokenHook != nil {
		c.TokenHook("", "")
	}
}

// accessExpiringSoon decodes the access token without verifying it (the
// server owns verification) just to read the exp claim.
func accessExpiringSoon(access string) bool {
	if access == "" {
		return false
	}
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshSkew
}

func (c *Client) url(path string) string {
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

// do performs one JSON request with bearer auth. On a 401 it refreshes the
// access token and retries exactly once; a second 401 is ErrAuthExpired.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	access, refreshTok := c.tokens()
	if refreshTok != "" && accessExpiringSoon(access) {
		if err := c.refreshAccess(ctx); err == nil {
			access, _ = c.tokens()
		}
	}

	status, respBody, err := c.doOnce(ctx, method, path, body, access)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if refreshTok == "" {
			return ErrAuthExpired
		}
		if err := c.refreshAccess(ctx); err != nil {
			return ErrAuthExpired
		}
		access, _ = c.tokens()
		status, respBody, err = c.doOnce(ctx, method, path, body, access)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrAuthExpired
		}
	}
	return decodeReply(status, respBody, out)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, access string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return resp.StatusCode, respBody, nil
}

func decodeReply(status int, body []byte, out any) error {
	if status >= 300 {
		var detail struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &detail)
		msg := detail.Detail
		if msg == "" {
			msg = detail.Message
		}
		return &Error{Status: status, Detail: msg}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// refreshAccess trades the refresh token for a new access token. The refresh
// endpoint itself runs unauthenticated, so it never recurses into do.
func (c *Client) refreshAccess(ctx context.Context) error {
	_, refreshTok := c.tokens()
	if refreshTok == "" {
		return ErrAuthExpired
	}
	status, body, err := c.doOnce(ctx, http.MethodPost, "api/v1/auth/refresh", map[string]string{"refresh": refreshTok}, "")
	if err != nil {
		return err
	}
	var pair TokenPair
	if err := decodeReply(status, body, &pair); err != nil {
		return err
	}
	if pair.Access == "" {
		return ErrAuthExpired
	}
	c.storeTokens(pair.Access, pair.Refresh)
	return nil
}

// upload posts one multipart file field plus extra form values.
func (c *Client) upload(ctx context.Context, path, field, filename string, blob []byte, extra map[string]string, out any) error {
	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile(field, filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(blob); err != nil {
			return nil, "", err
		}
		for k, v := range extra {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}

	send := func(access string) (int, []byte, error) {
		reader, contentType, err := build()
		if err != nil {
			return 0, nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), reader)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
		req.Header.Set("X-Request-ID", uuid.NewString())
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("upload failed: %w", err)
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, nil, err
		}
		return resp.StatusCode, respBody, nil
	}

	access, refreshTok := c.tokens()
	status, body, err := send(access)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if refreshTok == "" {
			return ErrAuthExpired
		}
		if err := c.refreshAccess(ctx); err != nil {
			return ErrAuthExpired
		}
		access, _ = c.tokens()
		status, body, err = send(access)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrAuthExpired
		}
	}
	return decodeReply(status, body, out)
}
