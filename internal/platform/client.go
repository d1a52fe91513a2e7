package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBodyBytes  = 512 << 10
)

// Backend API routes.
const (
	PathStructure        = "/api/toml_query/structure"
	PathCheckStatus      = "/api/point_info/check_status"
	PathWizardImport     = "/api/point_info/wizard_import"
	PathConfigFiles      = "/api/config_files"
	PathCreateComponents = "/api/components/create_from_snippets"
)

var defaultTransport http.RoundTripper = http.DefaultTransport

// SetTransportForTesting overrides the transport used for outbound HTTP calls. The caller must invoke the returned
// cleanup function to restore the previous transport when finished.
func SetTransportForTesting(rt http.RoundTripper) func() {
	prev := defaultTransport
	if rt == nil {
		rt = http.DefaultTransport
	}
	defaultTransport = rt
	return func() {
		defaultTransport = prev
	}
}

// Client wraps HTTP access to the config backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientOption customises the client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient constructs a backend client. The bearer token is optional.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	client := &Client{
		base: u,
		http: &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &authTransport{
				base:  defaultTransport,
				token: token,
			},
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	// Ensure custom transport also wraps token
	if _, ok := client.http.Transport.(*authTransport); !ok {
		client.http.Transport = &authTransport{
			base:  client.http.Transport,
			token: token,
		}
	}

	return client, nil
}

type authTransport struct {
	base  http.RoundTripper
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = defaultTransport
	}
	req2 := req.Clone(req.Context())
	if t.token != "" {
		req2.Header.Set("Authorization", "Bearer "+t.token)
	}
	req2.Header.Set("Accept", "application/json")
	return base.RoundTrip(req2)
}

func (c *Client) buildURL(p string) string {
	u := *c.base
	u.Path = path.Join(c.base.Path, p)
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, networkError(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return newAPIError(method, path, resp.StatusCode, bytes.TrimSpace(payload))
	}

	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ParseStructure asks the backend to parse snippet content into a structure tree and decoded data.
func (c *Client) ParseStructure(ctx context.Context, content string) (StructureResponse, error) {
	var resp StructureResponse
	if err := c.do(ctx, http.MethodPost, PathStructure, StructureRequest{Content: content}, &resp); err != nil {
		return StructureResponse{}, err
	}
	if resp.Data == nil {
		resp.Data = map[string]any{}
	}
	return resp, nil
}

// CheckPointStatus looks up measurement names relative to a config file.
func (c *Client) CheckPointStatus(ctx context.Context, names []string, configID int64) (map[string]PointStatus, error) {
	var resp CheckStatusResponse
	req := CheckStatusRequest{Names: names, ConfigID: configID}
	if err := c.do(ctx, http.MethodPost, PathCheckStatus, req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == nil {
		resp.Status = map[string]PointStatus{}
	}
	return resp.Status, nil
}

// CommitImport creates and merges points in a single call.
func (c *Client) CommitImport(ctx context.Context, req ImportRequest) (ImportResponse, error) {
	if req.PointsToCreate == nil {
		req.PointsToCreate = []ImportPoint{}
	}
	if req.PointsToMerge == nil {
		req.PointsToMerge = []ImportPoint{}
	}
	var resp ImportResponse
	if err := c.do(ctx, http.MethodPost, PathWizardImport, req, &resp); err != nil {
		return ImportResponse{}, err
	}
	return resp, nil
}

// GetConfigFile fetches a stored configuration file.
func (c *Client) GetConfigFile(ctx context.Context, id int64) (ConfigFile, error) {
	var file ConfigFile
	if err := c.do(ctx, http.MethodGet, PathConfigFiles+"/"+strconv.FormatInt(id, 10), nil, &file); err != nil {
		return ConfigFile{}, err
	}
	return file, nil
}

// UploadConfigFile stores a configuration file and returns it with its assigned id.
func (c *Client) UploadConfigFile(ctx context.Context, fileName, content string) (ConfigFile, error) {
	var file ConfigFile
	req := UploadConfigFileRequest{FileName: fileName, Content: content}
	if err := c.do(ctx, http.MethodPost, PathConfigFiles, req, &file); err != nil {
		return ConfigFile{}, err
	}
	return file, nil
}

// CreateComponents saves snippets as reusable components.
func (c *Client) CreateComponents(ctx context.Context, snippets []ComponentSnippet) (CreateComponentsResponse, error) {
	var resp CreateComponentsResponse
	req := CreateComponentsRequest{Snippets: snippets}
	if err := c.do(ctx, http.MethodPost, PathCreateComponents, req, &resp); err != nil {
		return CreateComponentsResponse{}, err
	}
	return resp, nil
}

func networkError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return fmt.Errorf("request timeout: %w", err)
	}
	return err
}
