package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nvallejo/weft/internal/credentials"
	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/pkg/schema"
)

// HTTPConfig configures http-request nodes.
type HTTPConfig struct {
	Client          *http.Client
	DefaultTimeout  time.Duration
	MaxResponseBody int64
}

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultHTTPTimeout     = 30 * time.Second
)

// HTTPRequestNode issues an HTTP request built from its parameters, with
// {{key}} tokens substituted from the node's input. Parameters: method
// (default GET), url (required), headers, body, timeout, credentialId.
// A configured credentialId resolves auth material through the vault.
type HTTPRequestNode struct {
	base
	cfg   HTTPConfig
	vault credentials.Vault
}

// NewHTTPRequestNode builds the http-request constructor.
func NewHTTPRequestNode(cfg HTTPConfig, vault credentials.Vault) Constructor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultHTTPTimeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return func(spec *schema.NodeSpec) (Node, error) {
		return &HTTPRequestNode{base: newBase(spec), cfg: cfg, vault: vault}, nil
	}
}

func (n *HTTPRequestNode) Type() string { return TypeHTTPRequest }

func (n *HTTPRequestNode) Validate() error {
	if stringParam(n.params, "url", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "http-request: missing required parameter 'url'").
			WithNode(n.id)
	}
	return nil
}

func (n *HTTPRequestNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	params := expressions.RenderTemplates(n.params, input)

	rawURL := stringParam(params, "url", "")
	if rawURL == "" {
		return failure(n, "http-request: missing required parameter 'url'"), nil
	}

	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))

	timeout := n.cfg.DefaultTimeout
	if ts := stringParam(params, "timeout", ""); ts != "" {
		if d, err := time.ParseDuration(ts); err == nil {
			timeout = d
		}
	}

	var bodyReader io.Reader
	var contentType string
	if rawBody, ok := params["body"]; ok && rawBody != nil {
		switch b := rawBody.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return failure(n, fmt.Sprintf("http-request: cannot encode body: %v", err)), nil
			}
			bodyReader = strings.NewReader(string(encoded))
			contentType = "application/json"
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return failure(n, fmt.Sprintf("http-request: invalid request: %v", err)), nil
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range mapParam(params, "headers") {
		req.Header.Set(k, fmt.Sprintf("%v", v))
	}

	if err := n.applyCredential(ctx, params, req); err != nil {
		return failure(n, err.Error()), nil
	}

	resp, err := n.cfg.Client.Do(req)
	if err != nil {
		// Transport failures are retryable.
		return nil, schema.NewErrorf(schema.ErrCodeTransient,
			"http-request: request failed: %v", err).
			WithNode(n.id).WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, n.cfg.MaxResponseBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTransient,
			"http-request: failed to read response body").
			WithNode(n.id).WithCause(err)
	}

	respContentType := resp.Header.Get("Content-Type")
	var parsedBody any
	if len(bodyBytes) == 0 {
		parsedBody = nil
	} else if strings.Contains(respContentType, "application/json") {
		var jsonBody any
		if err := json.Unmarshal(bodyBytes, &jsonBody); err == nil {
			parsedBody = jsonBody
		} else {
			parsedBody = string(bodyBytes)
		}
	} else {
		parsedBody = string(bodyBytes)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return success(n, map[string]any{
		"statusCode": resp.StatusCode,
		"body":       parsedBody,
		"headers":    respHeaders,
	}), nil
}

// applyCredential resolves the node's credentialId through the vault and
// sets the matching auth header on the request.
func (n *HTTPRequestNode) applyCredential(ctx context.Context, params map[string]any, req *http.Request) error {
	credID := stringParam(params, "credentialId", "")
	if credID == "" {
		return nil
	}
	if n.vault == nil {
		return fmt.Errorf("http-request: credentialId set but no vault configured")
	}

	payload, err := n.vault.GetDecrypted(ctx, credID, stringParam(params, "credentialUser", ""))
	if err != nil {
		return fmt.Errorf("http-request: credential lookup failed: %v", err)
	}

	switch stringParam(payload, "type", "bearer") {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+stringParam(payload, "token", ""))
	case "basic":
		req.SetBasicAuth(stringParam(payload, "username", ""), stringParam(payload, "password", ""))
	case "header":
		name := stringParam(payload, "header_name", "")
		if name != "" {
			req.Header.Set(name, stringParam(payload, "header_value", ""))
		}
	}
	return nil
}
