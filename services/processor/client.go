package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"northcart-payment-engine/ratelimit"
)

const (
	SandboxHost    = "https://api.sandbox.optimagate.com"
	ProductionHost = "https://api.optimagate.com"
	// A subset of merchant accounts is still provisioned on the
	// processor's pre-acquisition brand host.
	LegacyProductionHost = "https://api.legacy.optimagate.com"

	RequestTimeout = 30 * time.Second
)

// Credentials is the immutable credential set for one configured gateway
// instance. The primary pair signs vault and payment calls; the token pair
// signs single-use-token creation only.
type Credentials struct {
	APIUser       string
	APIPassword   string
	TokenUser     string
	TokenPassword string
	// AccountIDs maps ISO currency code to the processor merchant account
	// used for that currency.
	AccountIDs  map[string]string
	Environment string // "sandbox" or "live"
	LegacyHost  bool
}

// Validate checks the primary credential pair and environment. The token
// pair is validated at use, since not every merchant enables direct
// tokenization.
func (c Credentials) Validate() error {
	if c.APIUser == "" || c.APIPassword == "" {
		return errors.New("processor API credentials are required")
	}
	if c.Environment != "sandbox" && c.Environment != "live" {
		return fmt.Errorf("unknown processor environment %q", c.Environment)
	}
	if len(c.AccountIDs) == 0 {
		return errors.New("at least one merchant account id is required")
	}
	return nil
}

// Client is the authenticated HTTP client wrapping every processor call.
// It gates on the rate limiter, normalizes success bodies, and funnels
// failures through the classifier.
type Client struct {
	creds      Credentials
	limiter    *ratelimit.Limiter
	classifier *Classifier
	client     *http.Client
	baseURL    string
}

func NewClient(creds Credentials, limiter *ratelimit.Limiter, classifier *Classifier) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore(nil), ratelimit.Config{})
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		creds:      creds,
		limiter:    limiter,
		classifier: classifier,
		baseURL:    hostFor(creds),
		client: &http.Client{
			Timeout:   RequestTimeout,
			Transport: transport,
		},
	}, nil
}

func hostFor(creds Credentials) string {
	if creds.Environment == "sandbox" {
		return SandboxHost
	}
	if creds.LegacyHost {
		return LegacyProductionHost
	}
	return ProductionHost
}

// OverrideBaseURL points the client at a different host. Used by tests.
func (c *Client) OverrideBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// Classifier exposes the client's classifier so callers can resolve safe
// messages for codes they derive themselves.
func (c *Client) Classifier() *Classifier {
	return c.classifier
}

// AccountID resolves the merchant account for a currency.
func (c *Client) AccountID(currency string) (string, error) {
	acct, ok := c.creds.AccountIDs[strings.ToUpper(currency)]
	if !ok {
		return "", fmt.Errorf("no merchant account configured for currency %s", currency)
	}
	return acct, nil
}

// Request performs one processor call. Every attempt, successful or not,
// is first gated by the rate limiter and then recorded against the window.
//
// Responses >= 400 normally raise an *APIError. The exception: a body that
// carries both an error code in the void-required set and an object id is
// returned as a Response, because the caller must learn the auth id to
// compensate the hold the failed call still created.
func (c *Client) Request(ctx context.Context, method, path string, body interface{}, useTokenAuth bool) (*Response, error) {
	if useTokenAuth && (c.creds.TokenUser == "" || c.creds.TokenPassword == "") {
		return nil, errors.New("single-use-token credentials are not configured")
	}

	allowed, err := c.limiter.Allow(ctx, c.creds.APIUser)
	if err != nil {
		// A broken limiter store must not take payments down with it.
		log.Printf("rate limit check failed, allowing request: %v", err)
		allowed = true
	}
	if !allowed {
		wait, werr := c.limiter.WaitSeconds(ctx, c.creds.APIUser)
		if werr != nil {
			log.Printf("rate limit wait lookup failed: %v", werr)
		}
		return nil, &ratelimit.RateLimitError{WaitSeconds: wait}
	}
	if err := c.limiter.Record(ctx, c.creds.APIUser); err != nil {
		log.Printf("rate limit record failed: %v", err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling %s %s request: %v", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating %s %s request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Basic "+c.basicAuth(useTokenAuth))

	if len(payload) > 0 {
		log.Printf("processor request %s %s: %s", method, path, Sanitize(payload))
	} else {
		log.Printf("processor request %s %s", method, path)
	}

	startTime := time.Now()
	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, newTransportError(fmt.Sprintf("%s %s", method, path), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransportError(fmt.Sprintf("%s %s read", method, path), err)
	}

	log.Printf("processor response %d for %s %s in %v: %s",
		httpResp.StatusCode, method, path, time.Since(startTime), Sanitize(respBody))

	resp, err := decodeResponse(httpResp.StatusCode, respBody)
	if err != nil {
		return nil, err
	}

	if resp.Status < 400 {
		return resp, nil
	}

	env := resp.Envelope()
	if env.ID != "" && VoidRequired(env.ErrorCode()) {
		// The failed call still created an authorization hold; hand the
		// raw result back so the orchestrator can void it.
		return resp, nil
	}

	code, message := c.classifier.Classify(resp.Status, resp)
	apiErr := &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: resp.Status,
		RawID:      env.ID,
	}
	if env.Error != nil {
		apiErr.RawMessage = env.Error.Message
	}
	return nil, apiErr
}

func (c *Client) basicAuth(useTokenAuth bool) string {
	user, pass := c.creds.APIUser, c.creds.APIPassword
	if useTokenAuth {
		user, pass = c.creds.TokenUser, c.creds.TokenPassword
	}
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// decodeResponse parses a processor body. A 2xx with an empty or literal
// null body normalizes to success-with-no-data.
func decodeResponse(status int, raw []byte) (*Response, error) {
	clean := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))

	resp := &Response{Status: status, Raw: []byte(clean)}
	if clean == "" || clean == "null" {
		resp.Raw = nil
		return resp, nil
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		if status < 400 {
			return nil, fmt.Errorf("error decoding processor response: %v", err)
		}
		// Error bodies are sometimes not JSON at all; classify on status.
		return resp, nil
	}
	resp.Body = parsed
	return resp, nil
}

// Monitor probes the processor status endpoint.
func (c *Client) Monitor(ctx context.Context) error {
	resp, err := c.Request(ctx, http.MethodGet, "/cardpayments/v1/monitor", nil, false)
	if err != nil {
		return err
	}
	if resp.Empty() {
		return nil
	}
	if status, ok := resp.Body["status"].(string); ok && !strings.EqualFold(status, "READY") {
		return fmt.Errorf("processor reports status %s", status)
	}
	return nil
}
