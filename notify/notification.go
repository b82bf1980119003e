// Package notify delivers notifications to sessions: event id assignment,
// replay buffering, subscription filtering and parallel fan-out to open push
// connections.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
)

// Notification method names understood by the gateway
const (
	// MethodResourceUpdated is resource-scoped: params carry the uri used
	// for subscription filtering
	MethodResourceUpdated = "notifications/resources/updated"

	// List-change notifications go to every session regardless of
	// subscriptions
	MethodResourceListChanged = "notifications/resources/list_changed"
	MethodToolListChanged     = "notifications/tools/list_changed"
	MethodPromptListChanged   = "notifications/prompts/list_changed"

	// MethodMessage forwards server log messages to clients
	MethodMessage = "notifications/message"
)

// Notification is a named event with an optional structured payload.
// Immutable once created.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// resourceParams is the payload shape for resource-scoped notifications
type resourceParams struct {
	URI string `json:"uri"`
}

// NewResourceUpdated builds a resource-updated notification for uri.
func NewResourceUpdated(uri string) Notification {
	params, _ := json.Marshal(resourceParams{URI: uri})
	return Notification{
		Method: MethodResourceUpdated,
		Params: params,
	}
}

// NewListChanged builds a list-change notification for the given method.
func NewListChanged(method string) Notification {
	return Notification{Method: method}
}

// ResourceURI extracts the resource identifier from a resource-scoped
// notification. Returns empty string for non-resource-scoped methods.
func (n Notification) ResourceURI() string {
	if n.Method != MethodResourceUpdated || len(n.Params) == 0 {
		return ""
	}
	var p resourceParams
	if err := json.Unmarshal(n.Params, &p); err != nil {
		return ""
	}
	return p.URI
}

// Frame renders the notification as a JSON-RPC 2.0 notification object, the
// payload pushed to clients.
func (n Notification) Frame() (json.RawMessage, error) {
	frame := struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{
		JSONRPC: "2.0",
		Method:  n.Method,
		Params:  n.Params,
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Notification", "Frame",
			fmt.Sprintf("marshal notification %s", n.Method))
	}
	return data, nil
}

// ParseNotification decodes a bus payload into a Notification. The payload
// must carry at least a method name.
func ParseNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, errors.WrapInvalid(errors.ErrParse, "Notification", "ParseNotification",
			fmt.Sprintf("decode notification payload: %v", err))
	}
	if n.Method == "" {
		return Notification{}, errors.WrapInvalid(errors.ErrInvalidParams, "Notification", "ParseNotification",
			"notification missing method")
	}
	return n, nil
}
