// Package gateway defines the protocol envelope shared by the HTTP, SSE and
// duplex transports: the JSON-RPC 2.0 request and response types, the error
// code mapping for the gateway's error taxonomy, and the core protocol
// methods every deployment registers.
package gateway

import (
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
)

// Protocol headers exchanged with clients.
const (
	// HeaderSessionID carries the session token on requests and responses.
	HeaderSessionID = "Mcp-Session-Id"

	// HeaderLastEventID carries the replay marker on SSE reconnects.
	HeaderLastEventID = "Last-Event-ID"
)

// JSON-RPC 2.0 error codes. The -32700..-32603 values are the standard
// reserved codes; the -32000 range holds gateway-specific conditions.
const (
	CodeParse          = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	CodeSessionRequired  = -32000
	CodeSessionExpired   = -32001
	CodeResourceNotFound = -32002
)

// Request is an incoming JSON-RPC 2.0 request. A request without an id is a
// notification and receives no response body.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Validate checks the envelope fields common to every request.
func (r *Request) Validate() error {
	if r.JSONRPC != "2.0" {
		return errors.WrapInvalid(errors.ErrParse, "Request", "Validate",
			"jsonrpc version must be 2.0")
	}
	if r.Method == "" {
		return errors.WrapInvalid(errors.ErrParse, "Request", "Validate",
			"method cannot be empty")
	}
	return nil
}

// Response is an outgoing JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC 2.0 error member.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResponse builds a success response for the given request id.
func NewResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id json.RawMessage, err error) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: ErrorFromErr(err)}
}

// ErrorFromErr maps an internal error to its JSON-RPC error object. The
// message is sanitized; internal detail never reaches the wire.
func ErrorFromErr(err error) *ErrorObject {
	switch {
	case stderrors.Is(err, errors.ErrParse):
		return &ErrorObject{Code: CodeParse, Message: "parse error"}
	case stderrors.Is(err, errors.ErrMethodNotFound):
		return &ErrorObject{Code: CodeMethodNotFound, Message: "method not found"}
	case stderrors.Is(err, errors.ErrInvalidParams):
		return &ErrorObject{Code: CodeInvalidParams, Message: "invalid params"}
	case stderrors.Is(err, errors.ErrSessionRequired):
		return &ErrorObject{Code: CodeSessionRequired, Message: "session required"}
	case stderrors.Is(err, errors.ErrSessionExpired):
		return &ErrorObject{Code: CodeSessionExpired, Message: "session expired or unknown"}
	case stderrors.Is(err, errors.ErrResourceNotFound):
		return &ErrorObject{Code: CodeResourceNotFound, Message: "resource not found"}
	case errors.IsInvalid(err):
		return &ErrorObject{Code: CodeInvalidRequest, Message: "invalid request"}
	default:
		return &ErrorObject{Code: CodeInternal, Message: "internal error"}
	}
}

// HTTPStatus maps an internal error to the transport-level status code.
// Method-level failures still travel as 200 with a JSON-RPC error object;
// this mapping covers envelope and session failures that reject the request
// before a handler runs.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case stderrors.Is(err, errors.ErrSessionExpired):
		return 404
	case stderrors.Is(err, errors.ErrSessionRequired):
		return 400
	case stderrors.Is(err, errors.ErrParse):
		return 400
	case errors.IsInvalid(err):
		return 400
	case errors.IsTransient(err) && strings.Contains(err.Error(), "timeout"):
		return 504
	case errors.IsTransient(err):
		return 503
	default:
		return 500
	}
}
