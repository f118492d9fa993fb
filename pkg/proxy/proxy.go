// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-compat-proxy/pkg/config"
	"github.com/go-core-stack/mcp-compat-proxy/pkg/stream"
	"github.com/go-core-stack/mcp-compat-proxy/pkg/transform"
)

// hopHeaders lists standard hop-by-hop headers that must be stripped before a
// message is proxied so the connection semantics on each side stay correct.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// maxLogBody limits how much of an upstream error body is logged.
const maxLogBody = 64 * 1024

// Proxy forwards MCP traffic to a single upstream server and rewrites the
// JSON-RPC responses flowing back so strict clients accept them.
type Proxy struct {
	// cfg keeps runtime knobs such as the upstream target and body limits.
	cfg config.Config
	// client performs outbound HTTP requests with tuned transport settings.
	client *http.Client
	// transformer rewrites response messages; it holds no per-request state.
	transformer *transform.Transformer
	// logger emits structured logs for observability.
	logger zerolog.Logger
	// baseURL is the upstream address used to resolve inbound paths.
	baseURL *url.URL
}

// New constructs a Proxy backed by an http.Client configured with connection
// pooling defaults and the provided runtime configuration.
func New(cfg config.Config) (http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		// Accept-Encoding is forwarded from the client as is.
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, // nolint:gosec -- opt-in for development scenarios
		},
	}

	client := &http.Client{
		// No overall timeout: event streams stay open for the session lifetime.
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	handler := &Proxy{
		cfg:    cfg,
		client: client,
		transformer: transform.New(transform.Options{
			StringifyIDs:         cfg.StringifyIDs,
			StripExclusiveBounds: cfg.StripExclusiveBounds,
		}),
		logger:  log.With().Str("component", "proxy").Logger(),
		baseURL: cfg.Upstream(),
	}

	return handler, nil
}

// ServeHTTP forwards the request unmodified and relays the upstream response,
// rewriting JSON and event-stream bodies on the way back.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event := p.logger.With().
		Str("request_id", uuid.NewString()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Logger()

	resp, err := p.forwardRequest(r)
	if err != nil {
		if r.Context().Err() != nil {
			event.Debug().
				Err(err).
				Dur("duration", time.Since(start)).
				Msg("client went away before upstream responded")
			return
		}
		writeProxyError(w, err)
		event.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			event.Debug().
				Err(closeErr).
				Msg("close upstream response body failed")
		}
	}()

	m := classify(r.Method, resp)
	event = event.With().
		Int("status", resp.StatusCode).
		Str("mode", m.String()).
		Logger()

	var relayErr error
	switch m {
	case modeEventStream:
		relayErr = p.relayEventStream(w, r, resp, event)
	case modeJSON:
		relayErr = p.relayJSON(w, r, resp, event)
	default:
		relayErr = p.relayPassthrough(w, r, resp, event)
	}
	if relayErr != nil {
		event.Error().
			Err(relayErr).
			Dur("duration", time.Since(start)).
			Msg("relay response failed")
		return
	}

	event.Info().
		Dur("duration", time.Since(start)).
		Msg("request proxied")
}

// forwardRequest clones the inbound request onto the upstream target and
// performs the round trip. The body is streamed, not buffered.
func (p *Proxy) forwardRequest(r *http.Request) (*http.Response, error) {
	targetURL := p.targetURL(r.URL)

	body := r.Body
	if r.ContentLength == 0 {
		body = http.NoBody
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	upstreamReq.ContentLength = r.ContentLength

	copyHeaders(upstreamReq.Header, r.Header)
	cleanHopHeaders(upstreamReq.Header)
	upstreamReq.Host = targetURL.Host

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		return nil, fmt.Errorf("perform upstream request: %w", err)
	}
	return resp, nil
}

// relayEventStream rewrites each SSE line as it completes and flushes after
// every upstream chunk.
func (p *Proxy) relayEventStream(w http.ResponseWriter, r *http.Request, resp *http.Response, event zerolog.Logger) error {
	header := w.Header()
	copyResponseHeaders(header, resp.Header)
	// Rewritten lines change the body length.
	header.Del("Content-Length")
	w.WriteHeader(resp.StatusCode)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	lw := stream.NewLineWriter(w, p.transformer.SSELine)
	readErr, writeErr := stream.Pump(lw, resp.Body)
	if writeErr != nil {
		event.Debug().Err(writeErr).Msg("client stopped reading event stream")
		return nil
	}
	if readErr != nil {
		return p.abortStream(r, readErr, event)
	}
	if err := lw.Close(); err != nil {
		event.Debug().Err(err).Msg("client stopped reading event stream")
	}
	return nil
}

// relayJSON buffers the whole body so the rewritten message can be sent with
// an accurate Content-Length. Nothing reaches the client until the body has
// been read, so upstream faults still produce the failure response.
func (p *Proxy) relayJSON(w http.ResponseWriter, r *http.Request, resp *http.Response, event zerolog.Logger) error {
	limit := p.cfg.MaxJSONBodyBytes
	if limit > 0 && resp.ContentLength > limit {
		err := fmt.Errorf("upstream body of %d bytes: %w", resp.ContentLength, stream.ErrBodyTooLarge)
		writeProxyError(w, err)
		return err
	}

	body, err := stream.ReadAll(resp.Body, limit)
	if err != nil {
		if r.Context().Err() != nil {
			event.Debug().Err(err).Msg("client went away while reading upstream body")
			return nil
		}
		err = fmt.Errorf("read upstream body: %w", err)
		writeProxyError(w, err)
		return err
	}

	out := p.transformer.Message(body)
	if resp.StatusCode >= http.StatusBadRequest {
		event.Warn().
			Bytes("upstream_body", truncate(body, maxLogBody)).
			Msg("upstream returned error")
	}

	header := w.Header()
	copyResponseHeaders(header, resp.Header)
	header.Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(resp.StatusCode)

	if _, err := w.Write(out); err != nil {
		event.Debug().Err(err).Msg("client stopped reading response")
		return nil
	}
	event.Debug().
		Int("upstream_bytes", len(body)).
		Int("client_bytes", len(out)).
		Msg("json response rewritten")
	return nil
}

// relayPassthrough copies headers, status and body byte for byte.
func (p *Proxy) relayPassthrough(w http.ResponseWriter, r *http.Request, resp *http.Response, event zerolog.Logger) error {
	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		event.Warn().Msg("upstream returned error")
	}

	var dst io.Writer = w
	if resp.ContentLength < 0 {
		// Unknown length usually means a streamed body; deliver it as it arrives.
		dst = stream.FlushWriter{W: w}
	}

	readErr, writeErr := stream.Pump(dst, resp.Body)
	if writeErr != nil {
		event.Debug().Err(writeErr).Msg("client stopped reading response")
		return nil
	}
	if readErr != nil {
		return p.abortStream(r, readErr, event)
	}
	return nil
}

// abortStream handles an upstream failure after the response has started.
// A status line is already on the wire, so the client connection is torn
// down instead of receiving a conflicting error body.
func (p *Proxy) abortStream(r *http.Request, readErr error, event zerolog.Logger) error {
	if r.Context().Err() != nil {
		event.Debug().Err(readErr).Msg("client went away mid-stream")
		return nil
	}
	event.Error().Err(readErr).Msg("upstream failed mid-stream; aborting client connection")
	panic(http.ErrAbortHandler)
}

// targetURL resolves the incoming path and query against the upstream base.
func (p *Proxy) targetURL(requestURL *url.URL) *url.URL {
	target := *p.baseURL
	target.Path = requestURL.Path
	target.RawPath = requestURL.RawPath
	target.RawQuery = requestURL.RawQuery
	return &target
}

// failureBody is the JSON document sent with a 502 when the upstream cannot
// be reached.
type failureBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeProxyError emits the fixed-shape 502 failure response.
func writeProxyError(w http.ResponseWriter, err error) {
	payload, marshalErr := json.Marshal(failureBody{Error: "Proxy error", Message: causeText(err)})
	if marshalErr != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write(payload)
}

// causeText strips the request line that net/http prefixes to transport
// errors, leaving the underlying cause.
func causeText(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if errors.Is(urlErr.Err, context.DeadlineExceeded) {
			return "upstream timed out: " + urlErr.Err.Error()
		}
		return urlErr.Err.Error()
	}
	return err.Error()
}

// copyHeaders appends all headers from src into dst.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// cleanHopHeaders removes hop-by-hop headers, including any named by the
// Connection header, that should not be forwarded.
func cleanHopHeaders(h http.Header) {
	for _, field := range h.Values("Connection") {
		for _, name := range strings.Split(field, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for k := range hopHeaders {
		h.Del(k)
	}
}

// copyResponseHeaders mirrors upstream response headers onto the writer,
// leaving hop-by-hop headers to the local server.
func copyResponseHeaders(dst, src http.Header) {
	for k, vv := range src {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
