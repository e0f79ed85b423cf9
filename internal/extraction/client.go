// Package extraction talks to the remote service that turns PDF documents
// into plain text.
package extraction

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/textnorm"
)

const (
	// DefaultTimeout bounds one extraction request. Large scanned RFPs take minutes.
	DefaultTimeout = 15 * time.Minute

	fileField = "file"
	userAgent = "rfp-evaluator"
)

// ErrNoContent is returned when the service answers without a content field.
var ErrNoContent = errors.New("extraction service returned no content")

type response struct {
	Content *string `json:"content"`
}

// Client uploads documents to the extraction service.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	url    string
	logger *zap.Logger
}

// New returns a client for the service at url.
func New(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		url:        url,
		logger:     logger,
	}
}

// ExtractFile uploads the file at path and returns its normalised, cleaned text.
func (c *Client) ExtractFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return c.Extract(ctx, filepath.Base(path), file)
}

// Extract uploads r under filename and returns the normalised, cleaned text.
func (c *Client) Extract(ctx context.Context, filename string, r io.Reader) (string, error) {
	if c.url == "" {
		return "", errors.New("extraction service url is not configured")
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Debug("make request", zap.String("url", c.url), zap.String("file", filename), zap.Int("size", b.Len()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	defer resp.Body.Close()

	content, err := parseResponse(resp)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	text := textnorm.Clean(textnorm.Normalize(content))
	c.logger.Info("document extracted",
		zap.String("file", filename),
		zap.Int("characters", len([]rune(text))),
		zap.Duration("took", time.Since(start)),
	)

	return text, nil
}

func parseResponse(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		body = gz
	}

	var decoded response
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if decoded.Content == nil {
		return "", ErrNoContent
	}

	return *decoded.Content, nil
}
