package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/dispatch"
	gwerrors "github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

func coreRegistry(t *testing.T) *dispatch.Registry {
	t.Helper()
	methods := dispatch.NewRegistry()
	require.NoError(t, RegisterCoreMethods(methods, ServerInfo{Name: "test-gateway", Version: "0.0.0"}))
	return methods
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	manager := session.NewManager(session.ManagerConfig{TTL: time.Minute})
	require.NoError(t, manager.Initialize())
	sess, _, err := manager.CreateOrResume("")
	require.NoError(t, err)
	return sess
}

func TestRegisterCoreMethods(t *testing.T) {
	methods := coreRegistry(t)
	assert.Equal(t,
		[]string{"initialize", "ping", "resources/subscribe", "resources/unsubscribe"},
		methods.Methods())
}

func TestInitializeMethod(t *testing.T) {
	methods := coreRegistry(t)

	result, err := methods.Dispatch(context.Background(), "initialize", nil, nil)
	require.NoError(t, err)

	init, ok := result.(InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, init.ProtocolVersion)
	assert.Equal(t, "test-gateway", init.ServerInfo.Name)
	assert.Contains(t, init.Capabilities, "resources")
}

func TestPingMethod(t *testing.T) {
	methods := coreRegistry(t)

	result, err := methods.Dispatch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, result)
}

func TestSubscribeMethod(t *testing.T) {
	methods := coreRegistry(t)
	sess := testSession(t)

	params := json.RawMessage(`{"uri":"file:///watched.txt"}`)
	_, err := methods.Dispatch(context.Background(), "resources/subscribe", sess, params)
	require.NoError(t, err)
	assert.True(t, sess.IsSubscribed("file:///watched.txt"))

	_, err = methods.Dispatch(context.Background(), "resources/unsubscribe", sess, params)
	require.NoError(t, err)
	assert.False(t, sess.IsSubscribed("file:///watched.txt"))
}

func TestSubscribeMethod_RequiresSession(t *testing.T) {
	methods := coreRegistry(t)

	_, err := methods.Dispatch(context.Background(), "resources/subscribe", nil,
		json.RawMessage(`{"uri":"file:///x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, gwerrors.ErrSessionRequired)
}

func TestSubscribeMethod_RequiresURI(t *testing.T) {
	methods := coreRegistry(t)
	sess := testSession(t)

	for _, params := range []json.RawMessage{nil, json.RawMessage(`{}`), json.RawMessage(`{not json`)} {
		_, err := methods.Dispatch(context.Background(), "resources/subscribe", sess, params)
		require.Error(t, err)
		assert.ErrorIs(t, err, gwerrors.ErrInvalidParams)
	}
}
