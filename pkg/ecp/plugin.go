package ecp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/roku-driver/pkg/core"
	"github.com/devicelab-dev/roku-driver/pkg/logger"
)

const (
	pluginInstallPath = "/plugin_install"
	pluginInspectPath = "/plugin_inspect"
	devScreenshotPath = "/pkgs/dev.jpg"
)

// pluginRequest is one request to the developer web server.
type pluginRequest struct {
	method    string
	uri       string
	fields    map[string]string
	fileField string
	filePath  string
}

// Install sideloads a channel archive as the dev channel.
func (c *Client) Install(ctx context.Context, archivePath string) error {
	logger.Info("Installing app from %s", archivePath)
	_, err := c.plugin(ctx, pluginRequest{
		method:    http.MethodPost,
		uri:       pluginInstallPath,
		fields:    map[string]string{"mySubmit": "Install"},
		fileField: "archive",
		filePath:  archivePath,
	})
	return err
}

// Remove deletes the dev channel. Only the dev channel can be removed.
func (c *Client) Remove(ctx context.Context) error {
	_, err := c.plugin(ctx, pluginRequest{
		method: http.MethodPost,
		uri:    pluginInstallPath,
		fields: map[string]string{"mySubmit": "Delete", "archive": ""},
	})
	return err
}

// Screenshot captures the dev channel and returns it as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	logger.Info("Directing plugin inspector to take screenshot")
	if _, err := c.plugin(ctx, pluginRequest{
		method: http.MethodPost,
		uri:    pluginInspectPath,
		fields: map[string]string{"mySubmit": "Screenshot"},
	}); err != nil {
		return nil, err
	}

	logger.Info("Screenshot taken, attempting to retrieve from %s", devScreenshotPath)
	data, err := c.plugin(ctx, pluginRequest{method: http.MethodGet, uri: devScreenshotPath})
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, core.ErrScreenshotUnavailable.WithCause(err)
		}
		return nil, err
	}
	return jpegToPNG(data)
}

func jpegToPNG(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// plugin performs a digest-authenticated request against the web server.
func (c *Client) plugin(ctx context.Context, pr pluginRequest) ([]byte, error) {
	fullURL := c.webURL + pr.uri

	ch, err := c.challenge(ctx, pr.method, fullURL)
	if err != nil {
		return nil, err
	}

	body, contentType, err := buildForm(pr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, pr.method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader(ch, pr.method, pr.uri))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logger.Info("Calling %s %s", pr.method, fullURL)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.ErrDeviceUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("%s %s [%v] %d", pr.method, pr.uri, time.Since(start), resp.StatusCode)
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Method: pr.method, Path: pr.uri, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// challenge makes an unauthenticated request to collect the digest nonce.
func (c *Client) challenge(ctx context.Context, method, fullURL string) (digestChallenge, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return digestChallenge{}, err
	}
	logger.Info("Getting auth header info from '%s %s'", method, fullURL)
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return digestChallenge{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return digestChallenge{}, core.ErrDeviceUnreachable.WithCause(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return parseChallenge(resp.Header.Get("WWW-Authenticate"))
}

func buildForm(pr pluginRequest) (io.Reader, string, error) {
	if len(pr.fields) == 0 && pr.filePath == "" {
		return nil, "", nil
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range pr.fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if pr.filePath != "" {
		f, err := os.Open(pr.filePath) //#nosec G304 -- user-provided channel archive
		if err != nil {
			return nil, "", fmt.Errorf("open archive: %w", err)
		}
		defer f.Close()
		part, err := w.CreateFormFile(pr.fileField, filepath.Base(pr.filePath))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("read archive: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
