// Package httpkit builds the HTTP clients used to reach generator
// backends. Every client shares one pooled transport, a request timeout,
// and the menuagent User-Agent.
//
// There is no retry transport. A resolution either gets its generator
// reply or fails.
package httpkit

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/buildinfo"
)

// DefaultTimeout bounds a whole request when no option overrides it.
const DefaultTimeout = 30 * time.Second

// ClientOption configures a client built by NewClient.
type ClientOption func(*options)

type options struct {
	timeout   time.Duration
	userAgent string
}

// WithTimeout sets the overall request timeout. Zero leaves the request
// bounded only by its context.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *options) { o.timeout = d }
}

// withUserAgent replaces the menuagent User-Agent. An empty value sends
// Go's default.
func withUserAgent(ua string) ClientOption {
	return func(o *options) { o.userAgent = ua }
}

var (
	sharedOnce      sync.Once
	sharedTransport *http.Transport
)

// Transport returns the process-wide pooled transport. Generator replies
// can take a long time to start, so only the dial and TLS phases have
// their own limits.
func Transport() *http.Transport {
	sharedOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			ForceAttemptHTTP2:   true,
		}
	})
	return sharedTransport
}

// NewClient returns a client on the shared transport.
func NewClient(opts ...ClientOption) *http.Client {
	o := options{timeout: DefaultTimeout, userAgent: buildinfo.UserAgent()}
	for _, opt := range opts {
		opt(&o)
	}

	var rt http.RoundTripper = Transport()
	if o.userAgent != "" {
		rt = userAgent{base: rt, value: o.userAgent}
	}
	return &http.Client{Timeout: o.timeout, Transport: rt}
}

// userAgent sets the User-Agent header on requests that carry none.
type userAgent struct {
	base  http.RoundTripper
	value string
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", u.value)
	return u.base.RoundTrip(req)
}

// DrainAndClose discards up to limit bytes of rc and closes it so the
// connection can return to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody returns up to limit bytes of an error response body and
// closes it. A nil body yields "".
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	defer DrainAndClose(rc, 1024)
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
