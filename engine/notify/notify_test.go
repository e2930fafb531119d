package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport rewrites every outbound request to target a local test
// server instead of the real Pushover API, so Send's HTTP plumbing can be
// exercised without reaching the network.
type redirectTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (r *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return r.base.RoundTrip(req)
}

func newTestSink(srv *httptest.Server) *PushoverSink {
	p := NewPushoverSink()
	u, _ := url.Parse(srv.URL)
	p.client = &http.Client{Transport: &redirectTransport{target: u, base: http.DefaultTransport}, Timeout: outboundTimeout}
	return p
}

// Credential-lazy: Send is a no-op (false, nil) before Configure is called.
func TestSendWithoutCredentialsIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestSink(srv)
	ok, err := p.Send(context.Background(), "title", "body", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called, "no HTTP request should be made without credentials")
}

func TestSendPostsFormEncodedBody(t *testing.T) {
	var gotToken, gotUser, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotToken = r.Form.Get("token")
		gotUser = r.Form.Get("user")
		gotTitle = r.Form.Get("title")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestSink(srv)
	p.Configure("tok", "user")
	ok, err := p.Send(context.Background(), "netwatch WARNING: n1 - cpu", "cpu is 85.00 % (>= 80.00)", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "user", gotUser)
	assert.Equal(t, "netwatch WARNING: n1 - cpu", gotTitle)
}

// Priority-2 (emergency) sends start a background retry goroutine; Close
// must tear it down promptly rather than waiting out the full 3600s
// expiration or the 60s retry cadence.
func TestEmergencyPriorityClosesPromptly(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestSink(srv)
	p.Configure("tok", "user")

	ok, err := p.Send(context.Background(), "critical", "body", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return promptly; emergency-retry goroutine failed to observe shutdown")
	}
}
