package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/bookmarket/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 90 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultDialRetries       = 3
	defaultDialBackoff       = time.Second

	// responseHeadroom is how long Telegram may take to answer beyond the long-poll window.
	responseHeadroom = 10 * time.Second
	// bodyHeadroom bounds reading the body and uploading request payloads.
	bodyHeadroom = 20 * time.Second
)

// HTTPClientOptions configures BuildHTTPClient.
type HTTPClientOptions struct {
	// LongPoll is the getUpdates timeout. Response deadlines are derived from it
	// so an idle poll is never cut short by the transport.
	LongPoll time.Duration
	// ResponseTimeout overrides the derived header deadline.
	ResponseTimeout time.Duration
	// DialRetries is how many extra connection attempts are made. Negative disables them.
	DialRetries int
	DialBackoff time.Duration
}

func (o HTTPClientOptions) withDefaults() HTTPClientOptions {
	if o.LongPoll <= 0 {
		o.LongPoll = defaultLongPollTimeout
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = o.LongPoll + responseHeadroom
	}
	if o.DialRetries == 0 {
		o.DialRetries = defaultDialRetries
	}
	if o.DialRetries < 0 {
		o.DialRetries = 0
	}
	if o.DialBackoff <= 0 {
		o.DialBackoff = defaultDialBackoff
	}
	return o
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
//
// The transport only repeats requests that never reached Telegram. Anything
// that may have been delivered (a timed out sendMessage, say) is returned to
// the caller as is, so one call never becomes several messages.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	opts = opts.withDefaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: opts.ResponseTimeout + bodyHeadroom,
		Transport: &dialRetryTransport{
			base:       transport,
			maxRetries: opts.DialRetries,
			backoff:    opts.DialBackoff,
		},
	}
}

// dialRetryTransport repeats a request while the connection cannot be established.
type dialRetryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.NotSent(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
