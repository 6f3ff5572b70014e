package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// API replies are small JSON documents; anything bigger is a broken proxy.
const maxResponseBytes = 4 << 20

// TracedClient keeps a warm connection to one API host and records where
// each request spent its time.
type TracedClient struct {
	client  *http.Client
	warmURL string
}

func NewTracedClient(warmURL string) *TracedClient {
	return &TracedClient{
		warmURL: warmURL,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phases collects httptrace callbacks into NetworkMetrics. Callbacks for
// one request arrive sequentially, so no locking is needed.
type phases struct {
	m NetworkMetrics

	start, getConn, dns, connect, handshake time.Time
	gotConn, wroteHeaders, wroteBody, first time.Time
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.m.ConnWait = p.gotConn.Sub(p.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { p.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(p.dns) },
		ConnectStart:      func(string, string) { p.connect = time.Now() },
		ConnectDone:       func(string, string, error) { p.m.TCP = time.Since(p.connect) },
		TLSHandshakeStart: func() { p.handshake = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(p.handshake)
			p.m.TLSProtocol = cs.NegotiatedProtocol
		},
		WroteHeaders: func() {
			p.wroteHeaders = time.Now()
			p.m.ReqHeaders = p.wroteHeaders.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wroteBody = time.Now()
			p.m.ReqBody = p.wroteBody.Sub(p.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			p.first = time.Now()
			p.m.TTFB = p.first.Sub(p.wroteBody)
		},
	}
}

func (p *phases) finish() *NetworkMetrics {
	if !p.first.IsZero() {
		p.m.Download = time.Since(p.first)
	}
	p.m.Total = time.Since(p.start)
	return &p.m
}

// Do sends req and reads the whole body. Transport errors are returned
// unwrapped so callers can tell a cancelled context apart.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	p := &phases{start: time.Now()}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response larger than %d bytes", maxResponseBytes)
	}

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    p.finish(),
	}, nil
}

// Warm opens a connection so the first dictation skips the TLS handshake.
func (c *TracedClient) Warm(ctx context.Context) {
	if c.warmURL == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.warmURL, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func warm(c *TracedClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Warm(ctx)
}
