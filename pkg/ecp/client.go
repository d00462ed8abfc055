// Package ecp talks to the device: the external control protocol (key presses,
// launches, queries) and the developer web server (sideloading, screenshots).
package ecp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

// Options configures a Client.
type Options struct {
	ECPURL      string        // e.g. http://192.168.1.40:8060
	WebURL      string        // e.g. http://192.168.1.40:80
	User        string        // developer web server user
	Password    string        // developer web server password
	WebCooldown time.Duration // minimum spacing between web server requests
	Timeout     time.Duration // per-request timeout, 0 means 5 minutes
}

// Client communicates with one device.
type Client struct {
	http    *http.Client
	baseURL string
	webURL  string
	user    string
	pass    string

	// The developer web server drops connections when hit too quickly.
	limiter *rate.Limiter

	mu         sync.Mutex
	nonceCount int
}

// NewClient creates a new device client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute // Long timeout for install/screenshot
	}
	limit := rate.Inf
	if opts.WebCooldown > 0 {
		limit = rate.Every(opts.WebCooldown)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(opts.ECPURL, "/"),
		webURL:  strings.TrimSuffix(opts.WebURL, "/"),
		user:    opts.User,
		pass:    opts.Password,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// KeyPress presses one remote key.
func (c *Client) KeyPress(ctx context.Context, key core.Key) error {
	_, err := c.ecp(ctx, http.MethodPost, "/keypress/"+string(key))
	return err
}

// Launch starts a channel. params may be nil.
func (c *Client) Launch(ctx context.Context, appID string, params url.Values) error {
	path := "/launch/" + url.PathEscape(appID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	_, err := c.ecp(ctx, http.MethodPost, path)
	return err
}

// Touch sends a touch press at device coordinates (bottom-left origin).
func (c *Client) Touch(ctx context.Context, x, y int) error {
	path := fmt.Sprintf("/input?touch.0.x=%d.0&touch.0.y=%d.0&touch.0.op=press", x, y)
	_, err := c.ecp(ctx, http.MethodPost, path)
	return err
}

// Query issues a GET /query/<name> request and returns the raw body.
func (c *Client) Query(ctx context.Context, name string) ([]byte, error) {
	return c.ecp(ctx, http.MethodGet, "/query/"+name)
}

// ecp makes a request to the external control protocol.
func (c *Client) ecp(ctx context.Context, method, path string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("%s %s [%v] ERROR: %v", method, path, elapsed, err)
		return nil, core.ErrDeviceUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("%s %s [%v] %d", method, path, elapsed, resp.StatusCode)

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// HTTPError is returned for non-success responses.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s failed with status %d", e.Method, e.Path, e.StatusCode)
	if b := strings.TrimSpace(e.Body); b != "" {
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		msg += ": " + b
	}
	return msg
}
