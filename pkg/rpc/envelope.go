// Package rpc implements request/reply calls between services over a message bus.
//
// A Client sends a Request to a named pattern through a Transport and waits for
// exactly one Reply. Transport failures are retried with a fixed delay; application
// rejections returned by the remote handler are terminal.
package rpc

import "encoding/json"

// Request is the envelope delivered to the handler registered for Pattern.
type Request struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	// Out-of-band trace identifier generated at the edge.
	TraceID string `json:"trace_id,omitempty"`
	// W3C trace context (traceparent, baggage).
	Headers map[string]string `json:"headers,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Data    json.RawMessage   `json:"data"`
}

// Reply answers the Request with the same ID. Exactly one of Data or Error is meaningful.
type Reply struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}
