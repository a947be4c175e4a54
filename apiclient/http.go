package apiclient

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/toy-run/toy/apiclient/signer"
	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/rbac"
)

// TokenProvider mints fresh bearer tokens on demand, re-signing once the
// previous token is within refreshSkew of its exp (spec.md §6.2: RS256,
// sub = supervisor name, aud = "api-root", exp <= 1h).
type TokenProvider struct {
	SupervisorName string
	KeyID          string
	Key            *rsa.PrivateKey
	TTL            time.Duration // defaults to 1h, the spec's ceiling

	mu      sync.Mutex
	cached  string
	expires time.Time
}

const refreshSkew = 30 * time.Second

// NewTokenProvider loads the RSA credential from pemBytes (the file
// TOY_API_CLIENT_CREDENTIAL points at) and returns a ready TokenProvider.
func NewTokenProvider(supervisorName, keyID string, pemBytes []byte) (*TokenProvider, error) {
	key, err := signer.LoadRSAPrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return &TokenProvider{SupervisorName: supervisorName, KeyID: keyID, Key: key}, nil
}

// Token returns a valid bearer token, minting a new one if the cached
// token has expired or is about to.
func (p *TokenProvider) Token() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" && time.Until(p.expires) > refreshSkew {
		return p.cached, nil
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, err := signer.SignRS256(signer.Claims{
		Subject:   p.SupervisorName,
		Audience:  "api-root",
		KeyID:     p.KeyID,
		ExpiresIn: ttl,
	}, p.Key)
	if err != nil {
		return "", err
	}
	p.cached = token
	p.expires = time.Now().Add(ttl)
	return token, nil
}

// HTTPClient is the net/http-backed Client implementation (spec.md §6.2).
// It retries 5xx responses with capped exponential backoff, grounded on
// the same poll-with-backoff shape the teacher's readiness checker uses
// for its own transient-failure retries.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  *TokenProvider

	// MaxRetries bounds the retry-on-5xx loop; 0 means "use the default
	// of 3", matching scenario 5 in spec.md §8 (three 503s then success).
	MaxRetries int
}

// NewHTTPClient builds an HTTPClient against baseURL (TOY_API_ROOT),
// authenticating every request with tokens.
func NewHTTPClient(baseURL string, tokens *TokenProvider) *HTTPClient {
	return &HTTPClient{BaseURL: baseURL, Tokens: tokens, HTTP: http.DefaultClient}
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *HTTPClient) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

// do issues method+path with an optional JSON body, retrying 5xx
// responses with exponential backoff starting at 100ms capped at 2s. A
// non-2xx, non-5xx response is returned as an error immediately — auth
// and client errors are not retryable.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: marshal request: %w", err)
		}
	}

	interval := 100 * time.Millisecond
	const maxInterval = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries(); attempt++ {
		resp, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
	return nil, fmt.Errorf("apiclient: %s %s: giving up after %d attempts: %w", method, path, c.maxRetries()+1, lastErr)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("apiclient: unexpected status %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status >= 500
}

func (c *HTTPClient) attempt(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid url: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		token, err := c.Tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("apiclient: sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}
	return resp, nil
}

func (c *HTTPClient) PutGraph(ctx context.Context, name string, graphJSON []byte) error {
	resp, err := c.do(ctx, http.MethodPut, "/graphs/"+url.PathEscape(name), json.RawMessage(graphJSON))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) CreateTask(ctx context.Context, graphName string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/tasks", map[string]string{"graph_name": graphName})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("apiclient: decode create-task response: %w", err)
	}
	return out.TaskID, nil
}

func (c *HTTPClient) ListTasks(ctx context.Context) ([]TaskSummary, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out []TaskSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("apiclient: decode list-tasks response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) StopTask(ctx context.Context, taskID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/stop", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, name string, labels map[string]string, taskCount int) error {
	resp, err := c.do(ctx, http.MethodPost, "/supervisors/"+url.PathEscape(name)+"/beat", map[string]any{
		"labels":     labels,
		"task_count": taskCount,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) ExportMetrics(ctx context.Context, snapshot metrics.Snapshot) error {
	resp, err := c.do(ctx, http.MethodPost, "/metrics", snapshot)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) PutRole(ctx context.Context, role rbac.Role) error {
	resp, err := c.do(ctx, http.MethodPut, "/rbac/roles/"+url.PathEscape(role.Name), role)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) PutRoleBinding(ctx context.Context, binding rbac.RoleBinding) error {
	resp, err := c.do(ctx, http.MethodPut, "/rbac/role-bindings/"+url.PathEscape(binding.Name), binding)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

var _ Client = (*HTTPClient)(nil)
