// Package api talks to the document chat service over its JSON REST
// contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"docchat/internal/model"
	"docchat/internal/utils"
	"docchat/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Client is the set of remote operations the stores depend on.
type Client interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.SessionDetail, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Chat(ctx context.Context, sessionID, message string) (*model.ChatReply, error)
	Upload(ctx context.Context, filename string, content io.Reader) (*model.UploadResult, error)
	Health(ctx context.Context) (*model.HealthStatus, error)
}

const (
	maxResponseBytes = 8 << 20
	sniffBytes       = 3072
	requestIDHeader  = "X-Request-ID"
)

// HTTPClient implements Client against a base URL such as
// http://localhost:5000.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*HTTPClient)

// WithToken sends a static bearer token with every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// WithHTTPClient replaces the default transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    utils.NewHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]model.Session, error) {
	var resp model.SessionListResponse
	if err := c.call(ctx, "list sessions", http.MethodGet, "/api/sessions", nil, "", &resp); err != nil {
		return nil, err
	}
	return dedupeSessions(resp.Sessions), nil
}

func (c *HTTPClient) GetSession(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	var resp model.SessionDetailResponse
	path := "/api/sessions/" + url.PathEscape(sessionID)
	if err := c.call(ctx, "get session", http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Session.ID == "" {
		resp.Session.ID = sessionID
	}
	return &model.SessionDetail{Session: resp.Session, ChatHistory: resp.ChatHistory}, nil
}

func (c *HTTPClient) DeleteSession(ctx context.Context, sessionID string) error {
	var resp model.Envelope
	path := "/api/sessions/" + url.PathEscape(sessionID)
	return c.call(ctx, "delete session", http.MethodDelete, path, nil, "", &resp)
}

func (c *HTTPClient) Chat(ctx context.Context, sessionID, message string) (*model.ChatReply, error) {
	body, err := json.Marshal(model.ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, errors.Wrap(err, "encode chat request")
	}

	var resp model.ChatResponse
	if err := c.call(ctx, "chat", http.MethodPost, "/chat", bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &model.ChatReply{
		Response:    resp.Response,
		SourcesUsed: resp.SourcesUsed,
		Confidence:  resp.Confidence,
	}, nil
}

// Upload posts content as the multipart field "file". The part's content
// type is sniffed from the first bytes of content.
func (c *HTTPClient) Upload(ctx context.Context, filename string, content io.Reader) (*model.UploadResult, error) {
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(filename))))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, errors.Wrap(err, "create multipart part")
	}
	if _, err := io.Copy(part, io.MultiReader(bytes.NewReader(head), content)); err != nil {
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart body")
	}

	var resp model.UploadResponse
	if err := c.call(ctx, "upload", http.MethodPost, "/upload", &buf, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &model.UploadResult{SessionID: resp.SessionID, Message: resp.Message}, nil
}

// Health has no envelope; any 200 with a decodable body counts as up.
func (c *HTTPClient) Health(ctx context.Context) (*model.HealthStatus, error) {
	const op = "health"
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	status, body, err := c.send(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	var h model.HealthStatus
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrapf(err, "decode response (HTTP %d)", status)}
	}
	if status != http.StatusOK {
		return nil, &ServiceError{Op: op, Status: status, Message: fmt.Sprintf("service unhealthy: %s", http.StatusText(status))}
	}
	return &h, nil
}

type outcome interface {
	Outcome() model.Envelope
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, body io.Reader, contentType string, out outcome) error {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	log := logger.WithFields(map[string]interface{}{
		"op":         op,
		"method":     method,
		"path":       path,
		"request_id": req.Header.Get(requestIDHeader),
	})

	status, data, err := c.send(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return &TransportError{Op: op, Err: err}
	}

	if err := json.Unmarshal(data, out); err != nil {
		log.WithError(err).WithField("status", status).Warn("malformed response")
		return &TransportError{Op: op, Err: errors.Wrapf(err, "decode response (HTTP %d)", status)}
	}

	env := out.Outcome()
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("Request failed: %s", http.StatusText(status))
		}
		log.WithField("status", status).Debugf("service refused: %s", msg)
		return &ServiceError{Op: op, Status: status, Message: msg}
	}

	log.WithField("status", status).Debug("request ok")
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *HTTPClient) send(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read response body")
	}
	return resp.StatusCode, data, nil
}

// dedupeSessions keeps the first occurrence of every id, preserving order.
func dedupeSessions(in []model.Session) []model.Session {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.Session, 0, len(in))
	for _, s := range in {
		if s.ID == "" {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
