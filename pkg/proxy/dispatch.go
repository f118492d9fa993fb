// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

var (
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	jsonMediaType        = contenttype.NewMediaType("application/json")
)

// relayMode selects how an upstream response body is handed to the client.
type relayMode int

const (
	// modePassthrough copies the body byte for byte.
	modePassthrough relayMode = iota
	// modeEventStream rewrites the body line by line as it streams.
	modeEventStream
	// modeJSON buffers and rewrites the body as one message.
	modeJSON
)

func (m relayMode) String() string {
	switch m {
	case modeEventStream:
		return "event-stream"
	case modeJSON:
		return "json"
	default:
		return "passthrough"
	}
}

// classify picks the relay mode from the upstream Content-Type. Bodies that
// are absent or content-encoded are never rewritten.
func classify(method string, resp *http.Response) relayMode {
	if method == http.MethodHead ||
		resp.StatusCode == http.StatusNoContent ||
		resp.StatusCode == http.StatusNotModified ||
		(resp.StatusCode >= 100 && resp.StatusCode < 200) {
		return modePassthrough
	}

	if enc := strings.TrimSpace(resp.Header.Get("Content-Encoding")); enc != "" && !strings.EqualFold(enc, "identity") {
		return modePassthrough
	}

	raw := resp.Header.Get("Content-Type")
	if raw == "" {
		return modePassthrough
	}
	// NewMediaType yields an empty media type for unparsable input.
	mt := contenttype.NewMediaType(strings.ToLower(raw))
	if mt.Type == "" || mt.Type == "*" || mt.Subtype == "*" {
		return modePassthrough
	}

	switch {
	case mt.Matches(eventStreamMediaType):
		return modeEventStream
	case mt.Matches(jsonMediaType):
		return modeJSON
	default:
		return modePassthrough
	}
}
