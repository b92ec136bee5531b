package catalyst

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/newtron-network/newtcc/pkg/util"
)

const (
	authPath       = "/dna/system/api/v1/auth/token"
	authHeader     = "X-Auth-Token"
	defaultPort    = 443
	defaultTimeout = 60 * time.Second
)

// ContextDialer opens TCP connections for the HTTP transport. SSHDialer
// implements it.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Config holds the connection parameters from the invocation envelope.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Verify   bool // verify the controller's TLS certificate
	Debug    bool // log request and response bodies

	Timeout   time.Duration // per request
	RateLimit float64       // requests per second, 0 = unlimited
	Dialer    ContextDialer // optional, e.g. an SSH jump host
}

// HTTPClient talks to a live controller.
type HTTPClient struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	token string
}

// NewHTTPClient creates a client. No request is made until the first Exec.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("controller host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.Verify}, //nolint:gosec // user opt-out via verify: false
	}
	if cfg.Dialer != nil {
		transport.DialContext = cfg.Dialer.DialContext
	}

	c := &HTTPClient{
		cfg:     cfg,
		baseURL: baseURL(cfg.Host, cfg.Port),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

func baseURL(host string, port int) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Exec implements Client.
func (c *HTTPClient) Exec(ctx context.Context, family, function string, params Params) (*Response, error) {
	ep, err := Lookup(family, function)
	if err != nil {
		return nil, err
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.do(ctx, ep, function, params, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		util.WithOperation(function).Debug("token rejected, re-authenticating")
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		if token, err = c.ensureToken(ctx); err != nil {
			return nil, err
		}
		if status, body, err = c.do(ctx, ep, function, params, token); err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		return nil, &util.RemoteError{
			Operation: function,
			Status:    fmt.Sprintf("HTTP %d", status),
			Payload:   strings.TrimSpace(string(body)),
		}
	}
	return NewResponse(body), nil
}

func (c *HTTPClient) do(ctx context.Context, ep Endpoint, function string, params Params, token string) (int, []byte, error) {
	u, err := c.buildURL(ep, params)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", function, err)
	}

	var reqBody io.Reader
	var payload []byte
	if ep.Body {
		payload, err = json.Marshal(params[PayloadKey])
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encoding payload: %w", function, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, u, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set(authHeader, token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := util.WithOperation(function)
	if c.cfg.Debug {
		log.Debugf("%s %s %s", ep.Method, u, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: reading response: %w", function, err)
	}
	if c.cfg.Debug {
		log.Debugf("HTTP %d %s", resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

func (c *HTTPClient) buildURL(ep Endpoint, params Params) (string, error) {
	path := ep.Path
	if strings.Contains(path, "{id}") {
		id, ok := params["id"]
		if !ok || fmt.Sprint(id) == "" {
			return "", fmt.Errorf("path parameter id is required")
		}
		path = strings.ReplaceAll(path, "{id}", url.PathEscape(fmt.Sprint(id)))
	}

	q := url.Values{}
	for _, key := range ep.Query {
		if v, ok := params[key]; ok && v != nil {
			q.Set(key, fmt.Sprint(v))
		}
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

func (c *HTTPClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticating to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &util.RemoteError{
			Operation: "authenticate",
			Status:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			Payload:   strings.TrimSpace(string(body)),
		}
	}

	var tok struct {
		Token string `json:"Token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.Token == "" {
		return "", fmt.Errorf("authentication response carried no token")
	}
	c.token = tok.Token
	util.WithField("host", c.cfg.Host).Debug("authenticated to controller")
	return c.token, nil
}
