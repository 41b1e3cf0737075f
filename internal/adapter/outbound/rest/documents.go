package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/docdesk/docdesk/internal/domain/document"
)

// Upload describes a file to upload. Content is read fully before sending so
// the request can be replayed after a token refresh.
type Upload struct {
	Filename    string
	Content     io.Reader
	Title       string
	Description string
	Category    string
	Tags        []string
}

// UploadDocument calls POST /api/documents/upload with a multipart form.
func (c *Client) UploadDocument(ctx context.Context, up Upload) (*document.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	title := up.Title
	if title == "" {
		title = up.Filename
	}
	fields := [][2]string{
		{"title", title},
		{"description", up.Description},
		{"category", up.Category},
		{"tags", strings.Join(up.Tags, ",")},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("file", up.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req := &Request{
		Method:      http.MethodPost,
		Path:        "/api/documents/upload",
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	}
	return c.documentCall(ctx, req)
}

// ListDocuments calls GET /api/documents with the query's list parameters.
func (c *Client) ListDocuments(ctx context.Context, q document.Query) (*document.Page, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/api/documents", Query: q.Values()})
	if err != nil {
		return nil, err
	}
	var page document.Page
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &page.Documents)
	} else {
		err = json.Unmarshal(trimmed, &page)
	}
	if err != nil {
		return nil, fmt.Errorf("GET /api/documents: decode response: %w", err)
	}
	return &page, nil
}

// GetDocument calls GET /api/documents/{id}.
func (c *Client) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	return c.documentCall(ctx, &Request{Method: http.MethodGet, Path: documentPath(id)})
}

// UpdateDocument calls PUT /api/documents/{id}.
func (c *Client) UpdateDocument(ctx context.Context, id string, upd document.Update) (*document.Document, error) {
	req, err := jsonRequest(http.MethodPut, documentPath(id), upd)
	if err != nil {
		return nil, err
	}
	return c.documentCall(ctx, req)
}

// DeleteDocument calls DELETE /api/documents/{id}.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.call(ctx, &Request{Method: http.MethodDelete, Path: documentPath(id)}, nil)
}

// UpdateDocumentStatus calls PATCH /api/documents/{id}/status.
func (c *Client) UpdateDocumentStatus(ctx context.Context, id, status string) (*document.Document, error) {
	req, err := jsonRequest(http.MethodPatch, documentPath(id)+"/status", map[string]string{"status": status})
	if err != nil {
		return nil, err
	}
	return c.documentCall(ctx, req)
}

// BulkDeleteDocuments calls DELETE /api/documents/bulk/{criteria} with an optional body.
func (c *Client) BulkDeleteDocuments(ctx context.Context, criteria string, data any) (json.RawMessage, error) {
	req, err := jsonRequest(http.MethodDelete, "/api/documents/bulk/"+url.PathEscape(criteria), data)
	if err != nil {
		return nil, err
	}
	return c.raw(ctx, req)
}

// DocumentStats calls GET /api/documents/analytics/stats.
func (c *Client) DocumentStats(ctx context.Context) (*document.Stats, error) {
	var stats document.Stats
	if err := c.call(ctx, &Request{Method: http.MethodGet, Path: "/api/documents/analytics/stats"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DocumentTrends calls GET /api/documents/analytics/trends. months <= 0 means 6.
func (c *Client) DocumentTrends(ctx context.Context, months int) (*document.Trends, error) {
	if months <= 0 {
		months = 6
	}
	req := &Request{
		Method: http.MethodGet,
		Path:   "/api/documents/analytics/trends",
		Query:  url.Values{"months": {strconv.Itoa(months)}},
	}
	var trends document.Trends
	if err := c.call(ctx, req, &trends); err != nil {
		return nil, err
	}
	return &trends, nil
}

func (c *Client) documentCall(ctx context.Context, req *Request) (*document.Document, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var doc document.Document
	if err := decodeEnvelope(resp.Body, "document", &doc); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", req.Op(), err)
	}
	return &doc, nil
}

func documentPath(id string) string {
	return "/api/documents/" + url.PathEscape(id)
}
