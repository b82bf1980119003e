//go:build integration
// +build integration

package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/natsclient"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// TestIntegration_BusToPushConnection drives the full path: a notification
// published on the bus reaches a session's push connection and its replay
// buffer.
func TestIntegration_BusToPushConnection(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}
	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer natsContainer.Terminate(ctx)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)
	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)
	natsURL := fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := natsclient.NewClient(natsURL)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	manager := session.NewManager(session.ManagerConfig{TTL: time.Minute})
	require.NoError(t, manager.Initialize())

	registry := NewRegistry(nil)
	manager.OnRemove(registry.CloseSession)

	dispatcher := NewDispatcher(DispatcherConfig{Manager: manager, Registry: registry})
	require.NoError(t, dispatcher.Initialize())
	require.NoError(t, dispatcher.Start(ctx))
	defer dispatcher.Stop(time.Second)

	source := NewSource(SourceConfig{Client: client, Dispatcher: dispatcher})
	require.NoError(t, source.Initialize())
	require.NoError(t, source.Start(ctx))
	defer source.Stop(time.Second)

	sess, _, err := manager.CreateOrResume("")
	require.NoError(t, err)
	sess.Subscribe("file:///watched.txt")

	conn := newFakeConn("conn-1")
	registry.Register(sess.ID(), conn)

	payload := []byte(`{"method":"notifications/resources/updated","params":{"uri":"file:///watched.txt"}}`)
	require.NoError(t, client.Publish(ctx, "notify.resources.updated", payload))

	assert.Eventually(t, func() bool {
		return len(conn.received()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	events := sess.ReplayAfter(0)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].ID)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","method":"notifications/resources/updated","params":{"uri":"file:///watched.txt"}}`,
		string(events[0].Data))

	// A notification for an unwatched uri is filtered out
	other := []byte(`{"method":"notifications/resources/updated","params":{"uri":"file:///other.txt"}}`)
	require.NoError(t, client.Publish(ctx, "notify.resources.updated", other))

	time.Sleep(500 * time.Millisecond)
	assert.Len(t, conn.received(), 1)
}
