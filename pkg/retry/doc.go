// Package retry implements exponential backoff with jitter for transient
// failures.
//
// # Overview
//
// The gateway talks to a message broker and serves long-lived client
// connections; both fail transiently. This package is the one retry
// mechanism used across the codebase so every reconnect and republish
// follows the same backoff discipline.
//
// # Functions
//
//   - Do: run a function with retry and exponential backoff
//   - DoWithResult: same, for functions that return a value
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (ordinary operations)
//   - Quick(): 10 attempts, 50ms-1s delay (component startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (broker connection)
//
// # Usage Examples
//
// Retrying a notification publish:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Publish("notify.resources.updated", payload)
//	})
//
// Waiting for the broker during startup:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return client.Connect()
//	})
//
// Retry with a result:
//
//	sub, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*nats.Subscription, error) {
//	    return client.Subscribe(subject, handler)
//	})
//
// Marking an error as hopeless:
//
//	err := retry.Do(ctx, cfg, func() error {
//	    if err := validate(msg); err != nil {
//	        return retry.NonRetryable(err)
//	    }
//	    return publish(msg)
//	})
//
// # Scope
//
// This package stays minimal on purpose:
//
//   - No circuit breaker; natsclient layers its own on top
//   - No metrics; instrument at the call site
//   - No error classification beyond the NonRetryable marker; the errors
//     package decides what is transient
//
// # Context Cancellation
//
// Retries stop as soon as the context is cancelled, whether the
// cancellation lands between attempts or during a backoff sleep.
//
// # Thread Safety
//
// All functions are safe for concurrent use. Jitter draws from a
// mutex-guarded random source.
package retry
