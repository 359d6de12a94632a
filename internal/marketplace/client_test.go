package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(apiURL string) *Client {
	return NewClient(apiURL, 5*time.Second, Credentials{
		AppKey:    "12345",
		AppSecret: "topsecret",
	})
}

// signQuery recomputes the expected signature over a received query,
// excluding the sign parameter itself.
func signQuery(secret string, query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k != "sign" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(query.Get(k))
	}
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

func TestSignSortsParametersByKey(t *testing.T) {
	c := testClient("http://unused")

	sig := c.Sign(map[string]string{
		"method":  "aliexpress.ds.product.get",
		"app_key": "12345",
		"zebra":   "z",
		"alpha":   "a",
	})

	// key||value concatenation in key order, HMAC-MD5, uppercase hex.
	mac := hmac.New(md5.New, []byte("topsecret"))
	mac.Write([]byte("alphaaapp_key12345methodaliexpress.ds.product.getzebraz"))
	expected := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	assert.Equal(t, expected, sig)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{32}$`), sig)
}

func TestSignDependsOnSecret(t *testing.T) {
	params := map[string]string{"method": "aliexpress.ds.product.get"}

	a := testClient("http://unused").Sign(params)
	b := NewClient("http://unused", time.Second, Credentials{AppKey: "12345", AppSecret: "othersecret"}).Sign(params)

	assert.NotEqual(t, a, b)
}

func TestInvokeSendsSignedQuery(t *testing.T) {
	var got url.Values
	var gotBody int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		gotBody = r.ContentLength
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"result":{"available_stock":7}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.Invoke(context.Background(), "aliexpress.ds.product.inventory.query", map[string]string{
		"product_id": "1005001",
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"available_stock":7}`, string(result))

	assert.Equal(t, "aliexpress.ds.product.inventory.query", got.Get("method"))
	assert.Equal(t, "12345", got.Get("app_key"))
	assert.Equal(t, "json", got.Get("format"))
	assert.Equal(t, "2.0", got.Get("v"))
	assert.Equal(t, "hmac", got.Get("sign_method"))
	assert.Equal(t, "1005001", got.Get("product_id"))
	assert.NotEmpty(t, got.Get("timestamp"))
	assert.Empty(t, got.Get("session"), "no session parameter without a session token")
	assert.LessOrEqual(t, gotBody, int64(0), "parameters travel in the query, not the body")

	// The signature covers base and caller parameters alike.
	assert.Equal(t, signQuery("topsecret", got), got.Get("sign"))
}

func TestInvokeIncludesSessionToken(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, Credentials{
		AppKey:       "12345",
		AppSecret:    "topsecret",
		SessionToken: "sess-abc",
	})
	_, err := c.Invoke(context.Background(), "aliexpress.ds.product.get", nil)

	require.NoError(t, err)
	assert.Equal(t, "sess-abc", got.Get("session"))
	assert.Equal(t, signQuery("topsecret", got), got.Get("sign"))
}

func TestInvokeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error_response":{"code":15,"msg":"Remote service error"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Invoke(context.Background(), "aliexpress.ds.product.get", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "15", apiErr.Code)
	assert.Equal(t, "Remote service error", apiErr.Message)
}

func TestInvokeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := testClient(srv.URL)
	_, err := c.Invoke(context.Background(), "aliexpress.ds.product.get", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestInvokeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Invoke(context.Background(), "aliexpress.ds.product.get", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
