package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"dropsync-service/internal/util"

	"go.uber.org/zap"
)

// TransportError indicates the signed call never produced a usable response
// (network failure, timeout, unreadable body). Retryable by the caller.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("marketplace transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError carries the remote service's structured error envelope.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("marketplace api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("marketplace api error: %s", e.Message)
}

// Credentials are a tenant's marketplace secrets. AppKey and AppSecret are
// long-lived; SessionToken is a renewable artifact and may be empty.
type Credentials struct {
	AppKey       string
	AppSecret    string
	SessionToken string
}

// Client issues signed requests to the marketplace open API. One client per
// tenant, since the signature is keyed on the tenant's app secret.
type Client struct {
	creds      Credentials
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a signed request client for one tenant's credentials.
func NewClient(apiURL string, timeout time.Duration, creds Credentials) *Client {
	return &Client{
		creds:  creds,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: util.GetLogger(),
	}
}

type errorEnvelope struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

type responseEnvelope struct {
	ErrorResponse *errorEnvelope  `json:"error_response"`
	Result        json.RawMessage `json:"result"`
}

// Sign computes the request signature: all parameters sorted by key,
// concatenated as key then value with no separators, HMAC-MD5 under the app
// secret, uppercase hex. The remote service rejects any other ordering or
// separator scheme.
func (c *Client) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params[k])
	}

	mac := hmac.New(md5.New, []byte(c.creds.AppSecret))
	mac.Write([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// Invoke calls the named remote method with the given parameters and returns
// the response's result sub-object. Parameters travel as the URL query of a
// bodyless POST; the signature covers base and caller parameters alike.
func (c *Client) Invoke(ctx context.Context, method string, params map[string]string) (json.RawMessage, error) {
	all := map[string]string{
		"method":      method,
		"app_key":     c.creds.AppKey,
		"timestamp":   strconv.FormatInt(time.Now().UnixMilli(), 10),
		"format":      "json",
		"v":           "2.0",
		"sign_method": "hmac",
	}
	if c.creds.SessionToken != "" {
		all["session"] = c.creds.SessionToken
	}
	for k, v := range params {
		all[k] = v
	}
	all["sign"] = c.Sign(all)

	// Log the method only. The signed parameter set includes the session
	// token and must stay out of the logs.
	c.logger.Debug("Calling marketplace", zap.String("method", method))

	start := time.Now()
	defer func() {
		util.MarketplaceRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	q := req.URL.Query()
	for k, v := range all {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("malformed response for %s: %w", method, err)}
	}

	if envelope.ErrorResponse != nil {
		msg := envelope.ErrorResponse.Msg
		if msg == "" {
			msg = "unknown marketplace api error"
		}
		c.logger.Warn("Marketplace api error",
			zap.String("method", method),
			zap.String("code", envelope.ErrorResponse.Code.String()))
		return nil, &APIError{
			Code:    envelope.ErrorResponse.Code.String(),
			Message: msg,
		}
	}

	return envelope.Result, nil
}
