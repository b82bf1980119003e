// Package errors defines the gateway error taxonomy and classification
// helpers shared by all components.
//
// # Protocol taxonomy
//
// The client-visible error family mirrors the wire protocol:
//
//   - ErrParse: a frame or request body could not be decoded
//   - ErrInvalidParams: a decoded request is missing required fields
//   - ErrSessionRequired / ErrSessionExpired: session token problems
//   - ErrResourceNotFound / ErrMethodNotFound: lookup failures
//   - ErrInternal: unexpected server-side failure
//   - ErrStream*: failures scoped to one logical stream on a duplex
//     connection; these are reported on that stream and never tear down
//     the physical connection
//
// # Classification
//
// Every error can be classified as transient, invalid, or fatal via
// Classify, IsTransient, IsInvalid, and IsFatal. Classification drives
// retry decisions (transient), client error mapping (invalid), and
// shutdown decisions (fatal). Wrap an error with its classification at
// the point where the failure mode is known:
//
//	if err := conn.Write(frame); err != nil {
//	    return errors.WrapTransient(err, "Registry", "Broadcast", "write frame")
//	}
//
// The wrapping convention is "component.method: action failed: %w" so
// logs and client-facing messages stay uniform across the codebase.
package errors
