package rpc

import "fmt"

// Version is the JSON-RPC protocol version carried on every frame.
const Version = "2.0"

// Standard JSON-RPC error codes used by the channel and its handlers.
const (
	// CodeMethodNotFound rejects a request for an unregistered method.
	CodeMethodNotFound = -32601

	// CodeInvalidParams rejects a request whose params fail validation.
	CodeInvalidParams = -32602

	// CodeInternal reports a handler failure.
	CodeInternal = -32603
)

// Request is an outgoing JSON-RPC request or notification.
//
// Wire format:
//
//	{"jsonrpc":"2.0","id":"01J...","method":"session.send","params":{...}}
//
// A notification omits the id.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response to an inbound request.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. It doubles as a Go error so handlers can
// return it directly to select the response code.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError creates a JSON-RPC error with the given code and message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// inboundResponse is a decoded response frame routed to a pending request.
type inboundResponse struct {
	result map[string]any
	err    *Error
}

// decodeInboundResponse extracts the result or error from a response frame.
func decodeInboundResponse(msg map[string]any) *inboundResponse {
	resp := &inboundResponse{}

	if result, ok := msg["result"].(map[string]any); ok {
		resp.result = result
	}

	if errObj, ok := msg["error"].(map[string]any); ok {
		e := &Error{Message: "unknown error"}

		if code, ok := errObj["code"].(float64); ok {
			e.Code = int(code)
		}

		if m, ok := errObj["message"].(string); ok {
			e.Message = m
		}

		e.Data = errObj["data"]
		resp.err = e
	}

	return resp
}
