// Package generator talks to the remote presentation generation backend.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"deckgen-web/internal/model"
	"deckgen-web/internal/utils"
	"deckgen-web/pkg/logger"
)

const (
	TextFileField     = "text_file"
	TemplateFileField = "template_file"
	InlineTextName    = "input.txt"

	PlainTextType = "text/plain; charset=utf-8"
	PPTXType      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation backend returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	endpoint         string
	httpClient       *http.Client
	maxResponseBytes int64
}

type Option func(*Client)

// WithHTTPClient replaces the default client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithMaxResponseBytes caps the response body. Zero means no cap.
func WithMaxResponseBytes(n int64) Option {
	return func(cl *Client) {
		cl.maxResponseBytes = n
	}
}

func NewClient(endpoint string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: utils.NewHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// InlineTextFile wraps typed text as the synthetic input.txt upload.
func InlineTextFile(text string) model.FileRef {
	return model.FileRef{
		Name:        InlineTextName,
		ContentType: PlainTextType,
		Data:        []byte(text),
	}
}

// Generate posts the request once and returns the binary body.
func (c *Client) Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	body, contentType, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/octet-stream, */*")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call generation backend: %w", err)
	}
	defer resp.Body.Close()

	entry := logger.WithFields(logger.Fields{
		"endpoint": c.endpoint,
		"status":   resp.StatusCode,
		"elapsed":  time.Since(started).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		entry.Warn("generation backend rejected request")
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var reader io.Reader = resp.Body
	if c.maxResponseBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxResponseBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}
	if c.maxResponseBytes > 0 && int64(len(data)) > c.maxResponseBytes {
		return nil, fmt.Errorf("generation response exceeds %d bytes", c.maxResponseBytes)
	}

	entry.WithField("bytes", len(data)).Info("presentation generated")

	return &model.GenerationResult{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// EncodeRequest builds the multipart body: text_file always, template_file
// when a template is present.
func EncodeRequest(req model.GenerationRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeFilePart(writer, TextFileField, req.TextFile, PlainTextType); err != nil {
		return nil, "", err
	}
	if req.TemplateFile != nil {
		if err := writeFilePart(writer, TemplateFileField, *req.TemplateFile, "application/octet-stream"); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(w *multipart.Writer, field string, f model.FileRef, fallbackType string) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = fallbackType
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write %s data: %w", field, err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
