// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy provides an HTTP reverse proxy that sits between MCP clients
// and a single upstream MCP server. Requests are forwarded untouched; JSON and
// event-stream responses are rewritten so clients with strict schema
// validation accept them, and every other response is relayed byte for byte.
package proxy
