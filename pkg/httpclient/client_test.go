package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAppliesProfile(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	body, contentType, err := New(CurlProfile, 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "curl/8.7.1", gotAgent)

	_, _, err = New(BrowserProfile, 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, gotAgent, "Mozilla/5.0")
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := New(CurlProfile, 0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestDoKeepsExplicitHeaders(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "podcast-brain")

	resp, err := New(BrowserProfile, 0).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "podcast-brain", gotAgent)
}
