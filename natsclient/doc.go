// Package natsclient manages the gateway's connection to the NATS
// notification bus.
//
// # Overview
//
// The Client wraps a single nats.Conn with connection lifecycle management,
// a circuit breaker for repeated connection failures, and background health
// monitoring. The dispatcher consumes notifications published on the bus
// through Subscribe; producers inside the gateway publish through Publish.
//
// # Circuit Breaker
//
// Connection and publish failures are counted per round. After the
// configured threshold the circuit opens: further attempts fail fast with
// ErrCircuitOpen while the backoff doubles up to the configured maximum.
// A timer moves the circuit back to disconnected after the backoff so the
// next Connect attempt can test the server.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("mcp-gateway"),
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithMetrics(coreMetrics),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "notify.>", func(ctx context.Context, data []byte) {
//	    // decode and dispatch
//	})
//
// # Health Monitoring
//
// When a health interval is configured (10s by default) a background
// goroutine checks IsConnected and RTT, updates the status, and invokes the
// health change callback on transitions. Callbacks run on their own
// goroutines so slow consumers cannot stall the monitor.
package natsclient
