package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultResponseHeaderTimeout, config.ResponseHeaderTimeout)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, config.MaxIdleConnsPerHost)
	assert.True(t, config.ForceHTTP2, "HTTP/2 should be preferred by default")
	assert.True(t, config.DecodeCompression)
	assert.NotNil(t, config.Logger)
}

func TestConfigureTLS(t *testing.T) {
	t.Run("secure defaults", func(t *testing.T) {
		config := NewDefaultClientConfig()
		tlsConfig := configureTLS(config)

		assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
		assert.False(t, tlsConfig.InsecureSkipVerify)
		assert.NotNil(t, tlsConfig.ClientSessionCache)
	})

	t.Run("custom config is cloned", func(t *testing.T) {
		custom := &tls.Config{ServerName: "backend.internal"}
		config := NewDefaultClientConfig()
		config.TLSConfig = custom
		config.IgnoreTLSErrors = true

		tlsConfig := configureTLS(config)

		assert.Equal(t, "backend.internal", tlsConfig.ServerName)
		assert.True(t, tlsConfig.InsecureSkipVerify)
		assert.False(t, custom.InsecureSkipVerify, "the caller's config must not be modified")
	})
}

func TestNewHTTPTransport(t *testing.T) {
	t.Run("nil config falls back to defaults", func(t *testing.T) {
		transport := NewHTTPTransport(nil)
		require.NotNil(t, transport)
		assert.Equal(t, DefaultMaxConnsPerHost, transport.MaxConnsPerHost)
	})

	t.Run("explicit proxy", func(t *testing.T) {
		proxyURL, err := url.Parse("http://127.0.0.1:3128")
		require.NoError(t, err)
		config := NewDefaultClientConfig()
		config.ProxyURL = proxyURL
		config.Logger = zap.NewNop()

		transport := NewHTTPTransport(config)
		req := httptest.NewRequest(http.MethodGet, "http://backend.example/api", nil)
		got, err := transport.Proxy(req)
		require.NoError(t, err)
		assert.Equal(t, proxyURL, got)
	})

	t.Run("HTTP/1.1 only", func(t *testing.T) {
		config := NewDefaultClientConfig()
		config.ForceHTTP2 = false
		transport := NewHTTPTransport(config)
		assert.Equal(t, []string{"http/1.1"}, transport.TLSClientConfig.NextProtos)
	})
}

func TestNewClient_DecodesCompressedResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AcceptEncoding, r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gzipBytes(t, `{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(nil)
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.True(t, resp.Uncompressed)
}
