// Package remote is a thin client for the hosted document database. It
// speaks an Appwrite-compatible REST dialect: one database, one collection
// per domain collection, server-assigned document ids, and $-prefixed
// system fields on every document.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ServerAssignedID asks the server to generate a unique document id,
// avoiding client-chosen id collisions.
const ServerAssignedID = "unique()"

// Document is a remote record: server envelope plus the open field set.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any
}

// Client is the remote document-database contract consumed by the sync
// engine and the session manager.
type Client interface {
	CreateDocument(ctx context.Context, collection, documentID string, data map[string]any) (*Document, error)
	UpdateDocument(ctx context.Context, collection, documentID string, data map[string]any) (*Document, error)
	DeleteDocument(ctx context.Context, collection, documentID string) error
	ListDocuments(ctx context.Context, collection, userID string) ([]Document, error)
	Health(ctx context.Context) error
}

// Config holds the connection settings for the hosted backend.
type Config struct {
	Endpoint   string
	ProjectID  string
	DatabaseID string
	Timeout    time.Duration
}

// HTTPClient implements Client and Account over HTTP.
type HTTPClient struct {
	cfg    Config
	client *http.Client

	// session holds the cookie-style session secret obtained at login.
	// Empty until CreateEmailSession succeeds.
	session string
}

// NewHTTPClient creates a client for the configured endpoint.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// CreateDocument creates a document. Pass ServerAssignedID to let the
// server pick the id; a caller-supplied id can fail with ErrConflict.
func (c *HTTPClient) CreateDocument(ctx context.Context, collection, documentID string, data map[string]any) (*Document, error) {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents", c.cfg.DatabaseID, collection)
	body := map[string]any{
		"documentId": documentID,
		"data":       data,
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, path, body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocument applies a partial update to an existing document.
func (c *HTTPClient) UpdateDocument(ctx context.Context, collection, documentID string, data map[string]any) (*Document, error) {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.cfg.DatabaseID, collection, documentID)
	body := map[string]any{"data": data}

	var doc Document
	if err := c.do(ctx, http.MethodPatch, path, body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document.
func (c *HTTPClient) DeleteDocument(ctx context.Context, collection, documentID string) error {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.cfg.DatabaseID, collection, documentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListDocuments returns all documents in the collection owned by userID.
func (c *HTTPClient) ListDocuments(ctx context.Context, collection, userID string) ([]Document, error) {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents", c.cfg.DatabaseID, collection)
	query := url.Values{}
	query.Add("queries[]", fmt.Sprintf(`equal("userId", ["%s"])`, userID))

	var resp struct {
		Total     int               `json:"total"`
		Documents []json.RawMessage `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.Documents))
	for _, raw := range resp.Documents {
		var doc Document
		if err := doc.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Health probes the backend. Used by the connectivity monitor.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do sends an authenticated request and decodes the response into out
// when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	if c.session != "" {
		req.Header.Set("X-Appwrite-Session", c.session)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// UnmarshalJSON splits the server envelope ($-prefixed fields) from the
// document's own fields.
func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	d.ID, _ = m["$id"].(string)
	d.CreatedAt = parseRemoteTime(m["$createdAt"])
	d.UpdatedAt = parseRemoteTime(m["$updatedAt"])

	d.Fields = make(map[string]any)
	for k, v := range m {
		if strings.HasPrefix(k, "$") {
			continue
		}
		d.Fields[k] = v
	}
	return nil
}

func parseRemoteTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
