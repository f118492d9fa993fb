// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package transform rewrites upstream JSON-RPC messages so that MCP clients
// with strict schema validation accept them: correlation ids are coerced to
// strings and JSON Schema keywords those clients reject are stripped from
// tool input schemas.
package transform

import (
	"bytes"

	"github.com/go-core-stack/mcp-compat-proxy/pkg/jsonvalue"
)

// ssePrefix introduces an SSE data line carrying one JSON-RPC message.
const ssePrefix = "data: "

// strippedKeywords are removed from tool input schemas at every depth.
var strippedKeywords = map[string]struct{}{
	"exclusiveMinimum": {},
	"exclusiveMaximum": {},
}

// Options selects which rewrites a Transformer applies.
type Options struct {
	// StringifyIDs coerces a present, non-null "id" to its string form.
	StringifyIDs bool
	// StripExclusiveBounds removes exclusiveMinimum/exclusiveMaximum from
	// every tool inputSchema found in a tools/list result.
	StripExclusiveBounds bool
}

// Transformer applies the configured rewrites. It holds no mutable state and
// is safe for concurrent use.
type Transformer struct {
	opts Options
}

// New returns a Transformer applying opts.
func New(opts Options) *Transformer {
	return &Transformer{opts: opts}
}

// Message rewrites one JSON document. Input that is not valid JSON is
// returned as is.
func (t *Transformer) Message(raw []byte) []byte {
	doc, err := jsonvalue.Parse(raw)
	if err != nil {
		return raw
	}
	return t.Value(doc).Encode()
}

// Value applies the rewrites to a parsed document. Only a top-level object
// is rewritten; arrays (batches) and scalars come back unchanged.
func (t *Transformer) Value(msg jsonvalue.Value) jsonvalue.Value {
	if msg.Kind() != jsonvalue.Object {
		return msg
	}

	if t.opts.StringifyIDs {
		if id, ok := msg.Field("id"); ok && !id.IsNull() && id.Kind() != jsonvalue.String {
			msg = msg.With("id", jsonvalue.NewString(id.ToString()))
		}
	}

	if t.opts.StripExclusiveBounds {
		if result, ok := msg.Field("result"); ok && result.Kind() == jsonvalue.Object {
			if tools, ok := result.Field("tools"); ok && tools.Kind() == jsonvalue.Array {
				result = result.With("tools", sanitizeTools(tools))
				msg = msg.With("result", result)
			}
		}
	}

	return msg
}

func sanitizeTools(tools jsonvalue.Value) jsonvalue.Value {
	elems := tools.Elements()
	out := make([]jsonvalue.Value, len(elems))
	for i, tool := range elems {
		schema, ok := tool.Field("inputSchema")
		if !ok {
			out[i] = tool
			continue
		}
		out[i] = tool.With("inputSchema", Sanitize(schema))
	}
	return jsonvalue.NewArray(out...)
}

// Sanitize returns node with exclusiveMinimum and exclusiveMaximum removed
// from every object at any depth. Array order and every other member are
// preserved.
func Sanitize(node jsonvalue.Value) jsonvalue.Value {
	switch node.Kind() {
	case jsonvalue.Array:
		elems := node.Elements()
		out := make([]jsonvalue.Value, len(elems))
		for i, elem := range elems {
			out[i] = Sanitize(elem)
		}
		return jsonvalue.NewArray(out...)
	case jsonvalue.Object:
		members := make([]jsonvalue.Member, 0, node.Len())
		for _, m := range node.Members() {
			if _, drop := strippedKeywords[m.Key]; drop {
				continue
			}
			members = append(members, jsonvalue.Member{Key: m.Key, Value: Sanitize(m.Value)})
		}
		return jsonvalue.NewObject(members...)
	default:
		return node
	}
}

// SSELine rewrites a single SSE line, given without its terminating newline.
// Only data lines with a non-blank payload are treated as JSON; comments,
// event fields and keep-alive blanks pass through untouched.
func (t *Transformer) SSELine(line []byte) []byte {
	if !bytes.HasPrefix(line, []byte(ssePrefix)) {
		return line
	}

	payload := line[len(ssePrefix):]
	// Keep CRLF framing intact when the upstream uses it.
	var cr []byte
	if bytes.HasSuffix(payload, []byte{'\r'}) {
		payload = payload[:len(payload)-1]
		cr = []byte{'\r'}
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return line
	}

	rewritten := t.Message(payload)
	out := make([]byte, 0, len(ssePrefix)+len(rewritten)+len(cr))
	out = append(out, ssePrefix...)
	out = append(out, rewritten...)
	return append(out, cr...)
}
