// Package client is the single handle to the hosted backend. One Client is
// constructed at application root and injected everywhere; it carries no
// domain state, no retry logic and no caching. Retry policy belongs to the
// fetch package, domain state to the session and cart packages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/junaidrashid-git/storefront-core/config"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/logging"
)

type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	log     *slog.Logger

	Auth     *AuthClient
	Storage  *StorageClient
	Realtime *RealtimeClient
}

// New builds the backend handle. Callers construct exactly one and pass it
// down; nothing in this module reaches for a global.
func New(cfg config.Config, log *slog.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{},
		log:     log,
	}
	c.Auth = newAuthClient(c, cfg.CartDir)
	c.Storage = &StorageClient{c: c}
	c.Realtime = newRealtimeClient(c)
	return c
}

// From starts a query against a table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table, sel: "*"}
}

// bearer returns the access token of the current session, or the public key
// when no one is signed in.
func (c *Client) bearer() string {
	if s := c.Auth.currentSession(); s != nil {
		return s.AccessToken
	}
	return c.anonKey
}

// doJSON issues one request and decodes the JSON response into dest (when
// dest is non-nil). Failures come back classified per the errs taxonomy.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, dest any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Canceled(ctx.Err())
		}
		return errs.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}
	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// backendError is the JSON error body the backend returns.
type backendError struct {
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Code    string `json:"code"`
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var be backendError
	_ = json.Unmarshal(raw, &be)
	msg := be.Message
	if msg == "" {
		msg = be.Msg
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	base := fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, msg)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errs.Authorization(base)
	case resp.StatusCode == http.StatusNotAcceptable, resp.StatusCode == http.StatusNotFound:
		// PostgREST answers 406 when a .Single() matched no row.
		return fmt.Errorf("%w: %w", errs.ErrNotFound, base)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return errs.Transient(base)
	default:
		return base
	}
}

var errNoSession = errors.New("no active session")

// nowFunc is swapped by tests.
var nowFunc = time.Now
