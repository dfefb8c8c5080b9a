package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/api"
)

// Sentinel errors for answer-sheet uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// Allowed answer-sheet MIME types. Handwritten answers are submitted as a
// single scanned PDF.
var allowedMIMETypes = map[string]string{
	"application/pdf": ".pdf",
}

// Client uploads objects to the portal's storage bucket and resolves their
// public locators.
type Client struct {
	baseURL  string
	bucket   string
	apiKey   string
	maxBytes int64
	tokens   api.TokenSource
	httpc    *http.Client
	log      zerolog.Logger
}

// New creates a bucket client. baseURL is the storage root (".../storage/v1").
// tokens may be nil; apiKey then authorizes uploads on its own.
func New(baseURL, bucket, apiKey string, maxBytes int64, timeout time.Duration, tokens api.TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bucket:   bucket,
		apiKey:   apiKey,
		maxBytes: maxBytes,
		tokens:   tokens,
		httpc:    &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "storage_client").Logger(),
	}
}

// CheckType reports whether contentType is accepted for upload. Callers may
// use it for early feedback at staging time; the authoritative check runs at
// submission.
func (c *Client) CheckType(contentType string) error {
	if _, ok := allowedMIMETypes[contentType]; !ok {
		return fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}
	return nil
}

// Put uploads one object under path. size, when known (>0), is checked
// against the configured cap before any bytes go out.
func (c *Client) Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error {
	if c.maxBytes > 0 && size > c.maxBytes {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, size, c.maxBytes)
	}

	url := c.baseURL + "/object/" + c.bucket + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload %s: store responded %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	c.log.Info().Str("path", path).Int64("size", size).Msg("Object stored")
	return nil
}

// PublicURL returns the durable public locator for an object. The locator is
// derivable without a round trip; the store serves it whether or not the
// object exists yet.
func (c *Client) PublicURL(path string) string {
	return c.baseURL + "/object/public/" + c.bucket + "/" + path
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			return
		}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	return types
}
