// Package notify implements the notification sink of spec.md §4.4: a
// Pushover-backed dispatcher with periodic re-delivery for emergency
// priority, grounded on original_source/backend/notifications.py's
// PushoverClient (no Go Pushover client exists anywhere in the corpus, so
// this is a thin net/http POST — see DESIGN.md for the stdlib
// justification).
package notify

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	apiURL            = "https://api.pushover.net/1/messages.json"
	outboundTimeout   = 10 * time.Second
	emergencyRetry    = 60 * time.Second
	emergencyExpire   = 3600 * time.Second
)

// Sink is the notification dispatch contract.
type Sink interface {
	Send(ctx context.Context, title, body string, priority int) (bool, error)
	Configure(token, userKey string)
	Close() error
}

// PushoverSink posts to the Pushover messages API. It is credential-lazy:
// Send returns (false, nil) rather than an error when credentials are
// absent (spec.md §4.4).
type PushoverSink struct {
	mu       sync.RWMutex
	token    string
	userKey  string
	client   *http.Client
	wg       sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

// NewPushoverSink constructs a sink with no credentials configured.
func NewPushoverSink() *PushoverSink {
	return &PushoverSink{
		client:  &http.Client{Timeout: outboundTimeout},
		closing: make(chan struct{}),
	}
}

// Configure hot-swaps credentials under a lock (spec.md §4.4).
func (p *PushoverSink) Configure(token, userKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.userKey = userKey
}

func (p *PushoverSink) credentials() (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token, p.userKey
}

// Send dispatches one notification. Priority 2 is re-delivered every 60s
// until acknowledged (modeled here as "until expiration", since this
// engine has no acknowledgement channel of its own) or until 3600s
// elapses, per spec.md §4.4/§6.
func (p *PushoverSink) Send(ctx context.Context, title, body string, priority int) (bool, error) {
	token, userKey := p.credentials()
	if token == "" || userKey == "" {
		return false, nil
	}

	ok, err := p.post(ctx, token, userKey, title, body, priority)
	if priority == 2 {
		p.startEmergencyRetry(token, userKey, title, body, priority)
	}
	return ok, err
}

func (p *PushoverSink) startEmergencyRetry(token, userKey, title, body string, priority int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		deadline := time.Now().Add(emergencyExpire)
		ticker := time.NewTicker(emergencyRetry)
		defer ticker.Stop()
		for {
			select {
			case <-p.closing:
				return
			case now := <-ticker.C:
				if now.After(deadline) {
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), outboundTimeout)
				_, _ = p.post(ctx, token, userKey, title, body, priority)
				cancel()
			}
		}
	}()
}

func (p *PushoverSink) post(ctx context.Context, token, userKey, title, body string, priority int) (bool, error) {
	form := url.Values{
		"token":    {token},
		"user":     {userKey},
		"title":    {title},
		"message":  {body},
		"priority": {strconv.Itoa(priority)},
	}
	if priority == 2 {
		form.Set("retry", "60")
		form.Set("expire", "3600")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Close cancels any in-flight emergency-retry goroutines.
func (p *PushoverSink) Close() error {
	p.closeOne.Do(func() { close(p.closing) })
	p.wg.Wait()
	return nil
}
