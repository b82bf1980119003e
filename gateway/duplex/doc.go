// Package duplex implements bidirectional streaming over a single
// websocket connection.
//
// # Wire protocol
//
// Control messages are JSON text frames with a type of start, chunk, done
// or error, correlated by stream id. Chunk data on binary streams travels
// as websocket binary frames prefixed with a 24-byte header: 16 bytes of
// zero-padded stream id followed by an 8-byte little-endian chunk index.
//
// # Stream lifecycle
//
// Either side opens a stream with a start frame and half-closes it with
// done. A stream is terminal once both sides are done, or immediately when
// either side sends error, the idle sweeper fires, or the connection drops.
// Terminal streams are evicted; frames referencing them are rejected with a
// warning while the connection stays up.
//
// When the peer finishes sending and this side has nothing of its own in
// flight, the engine acknowledges with a done frame summarizing the bytes
// and chunks received.
//
// # Concurrency
//
// Each connection runs one reader and one writer goroutine; every outbound
// frame funnels through the writer so concurrent streams never interleave
// mid-message. Relays run on their own goroutines and drive outbound
// streams through the same writer.
package duplex
