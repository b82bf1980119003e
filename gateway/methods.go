package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/dispatch"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// ProtocolVersion is the protocol revision this gateway speaks.
const ProtocolVersion = "2025-03-26"

// ServerInfo identifies the gateway in initialize responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the payload returned to initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// subscribeParams carries the resource uri for subscribe and unsubscribe.
type subscribeParams struct {
	URI string `json:"uri"`
}

func parseSubscribeParams(params json.RawMessage) (string, error) {
	var p subscribeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", errors.WrapInvalid(errors.ErrInvalidParams, "gateway", "parseSubscribeParams",
				fmt.Sprintf("malformed params: %v", err))
		}
	}
	if p.URI == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidParams, "gateway", "parseSubscribeParams",
			"params.uri is required")
	}
	return p.URI, nil
}

// RegisterCoreMethods installs the protocol methods every deployment serves:
// initialize, ping, and the resource subscription pair. Domain methods are
// registered separately by the embedding service.
func RegisterCoreMethods(methods *dispatch.Registry, info ServerInfo) error {
	register := func(name string, h dispatch.Handler) error {
		if err := methods.Register(name, h); err != nil {
			return errors.WrapFatal(err, "gateway", "RegisterCoreMethods",
				fmt.Sprintf("registering %s", name))
		}
		return nil
	}

	if err := register("initialize", func(_ context.Context, _ *session.Session, _ json.RawMessage) (any, error) {
		return InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      info,
			Capabilities: map[string]any{
				"resources": map[string]bool{"subscribe": true, "listChanged": true},
			},
		}, nil
	}); err != nil {
		return err
	}

	if err := register("ping", func(_ context.Context, _ *session.Session, _ json.RawMessage) (any, error) {
		return map[string]any{}, nil
	}); err != nil {
		return err
	}

	if err := register("resources/subscribe", func(_ context.Context, sess *session.Session, params json.RawMessage) (any, error) {
		if sess == nil {
			return nil, errors.WrapInvalid(errors.ErrSessionRequired, "gateway", "resources/subscribe",
				"subscriptions require a session")
		}
		uri, err := parseSubscribeParams(params)
		if err != nil {
			return nil, err
		}
		sess.Subscribe(uri)
		return map[string]any{}, nil
	}); err != nil {
		return err
	}

	if err := register("resources/unsubscribe", func(_ context.Context, sess *session.Session, params json.RawMessage) (any, error) {
		if sess == nil {
			return nil, errors.WrapInvalid(errors.ErrSessionRequired, "gateway", "resources/unsubscribe",
				"subscriptions require a session")
		}
		uri, err := parseSubscribeParams(params)
		if err != nil {
			return nil, err
		}
		sess.Unsubscribe(uri)
		return map[string]any{}, nil
	}); err != nil {
		return err
	}

	return nil
}
