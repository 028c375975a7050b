// Package platform provides a client for the host site's resource API, used
// to resolve content names and to apply confirmed changes.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// DefaultTimeout is the maximum time to wait for the resource API.
const DefaultTimeout = 15 * time.Second

// maxBodyLog bounds response bodies copied into logs and errors.
const maxBodyLog = 512

// Resource is one content item as the API returns it.
type Resource struct {
	ID    int64  `json:"id"`
	Title string `json:"-"`
	Type  string `json:"type,omitempty"`
}

// UnmarshalJSON accepts a title given either as a string or as
// {"rendered": "..."}.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    int64           `json:"id"`
		Type  string          `json:"type"`
		Title json.RawMessage `json:"title"`
		Name  string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Type = raw.Type
	r.Title = raw.Name

	if len(raw.Title) > 0 {
		var s string
		if err := json.Unmarshal(raw.Title, &s); err == nil {
			r.Title = s
			return nil
		}
		var rendered struct {
			Rendered string `json:"rendered"`
			Raw      string `json:"raw"`
		}
		if err := json.Unmarshal(raw.Title, &rendered); err == nil {
			r.Title = rendered.Rendered
			if rendered.Raw != "" {
				r.Title = rendered.Raw
			}
		}
	}
	return nil
}

// Client talks to the host resource API.
type Client interface {
	// Configured reports whether a base URL is set.
	Configured() bool

	// ResolveByName returns the single item of resource whose title equals
	// name (case-insensitive).
	ResolveByName(ctx context.Context, resource, name string) (*Resource, error)

	// Apply performs a confirmed create, update or delete.
	Apply(ctx context.Context, op *models.PendingOperation) (*Resource, error)
}

type httpClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a resource API client from configuration.
func NewClient(cfg *config.PlatformConfig, logger *zap.Logger) Client {
	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("platform"),
	}
}

func (c *httpClient) Configured() bool {
	return c.baseURL != ""
}

func (c *httpClient) ResolveByName(ctx context.Context, resource, name string) (*Resource, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: platform base URL", apperrors.ErrConfigurationMissing)
	}
	endpoint, err := buildURL(c.baseURL, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	q := url.Values{}
	q.Set("search", name)
	q.Set("per_page", "20")
	q.Set("context", "edit")
	endpoint += "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Resolving content by name",
		zap.String("resource", resource),
		zap.String("url", endpoint))

	var found []Resource
	if err := c.do(ctx, req, &found); err != nil {
		return nil, err
	}

	var matches []Resource
	for _, r := range found {
		if strings.EqualFold(strings.TrimSpace(r.Title), strings.TrimSpace(name)) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no %s titled %q", apperrors.ErrNotFound, resource, name)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s titled %q", apperrors.ErrInvalidInput, len(matches), resource, name)
	}
}

func (c *httpClient) Apply(ctx context.Context, op *models.PendingOperation) (*Resource, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: platform base URL", apperrors.ErrConfigurationMissing)
	}

	var (
		method   string
		segments = []string{op.Resource}
		body     io.Reader
	)
	switch op.Method {
	case models.OperationCreate:
		method = http.MethodPost
	case models.OperationUpdate:
		method = http.MethodPut
		segments = append(segments, strconv.FormatInt(op.TargetID, 10))
	case models.OperationDelete:
		method = http.MethodDelete
		segments = append(segments, strconv.FormatInt(op.TargetID, 10))
	default:
		return nil, fmt.Errorf("%w: method %q", apperrors.ErrOperationNotAllowed, op.Method)
	}
	if op.Method != models.OperationDelete {
		payload, err := json.Marshal(op.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint, err := buildURL(c.baseURL, segments...)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Info("Applying confirmed operation",
		zap.String("method", op.Method),
		zap.String("resource", op.Resource),
		zap.Int64("target_id", op.TargetID),
		zap.Int("tenant_id", op.TenantID))

	var result Resource
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}
	if result.ID == 0 {
		result.ID = op.TargetID
	}
	return &result, nil
}

// do sends req with credentials and decodes a JSON response into out.
// The configured token wins; otherwise the caller's bearer token is
// forwarded.
func (c *httpClient) do(ctx context.Context, req *http.Request, out any) error {
	token := c.token
	if token == "" {
		token, _ = auth.GetToken(ctx)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrPlatformRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", apperrors.ErrPlatformRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxBodyLog {
			snippet = snippet[:maxBodyLog]
		}
		c.logger.Error("Resource API returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet))
		return fmt.Errorf("%w: status %d", apperrors.ErrPlatformRequest, resp.StatusCode)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %w", apperrors.ErrPlatformRequest, err)
	}
	return nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}

var _ Client = (*httpClient)(nil)
