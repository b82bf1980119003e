package duplex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
)

// outFrame is one queued websocket message for the writer goroutine.
type outFrame struct {
	messageType int
	data        []byte
}

// Conn is one duplex websocket connection. All writes funnel through a
// single writer goroutine so control and binary frames from concurrent
// streams never interleave mid-message.
type Conn struct {
	id        string
	sessionID string
	engine    *Engine
	ws        *websocket.Conn
	logger    *slog.Logger

	outbound  chan outFrame
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	streams map[string]*StreamContext
}

func newConn(engine *Engine, ws *websocket.Conn, sessionID string) *Conn {
	id := "ws-" + uuid.NewString()
	return &Conn{
		id:        id,
		sessionID: sessionID,
		engine:    engine,
		ws:        ws,
		logger:    engine.logger.With("conn_id", id),
		outbound:  make(chan outFrame, 64),
		closed:    make(chan struct{}),
		streams:   make(map[string]*StreamContext),
	}
}

// ID returns the connection identity.
func (c *Conn) ID() string {
	return c.id
}

// SessionID returns the session this connection authenticated as.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// Stream returns the live stream with the given id.
func (c *Conn) Stream(id string) (*StreamContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stream, ok := c.streams[id]
	return stream, ok
}

// StreamCount returns the number of non-terminal streams.
func (c *Conn) StreamCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams)
}

func (c *Conn) snapshotStreams() []*StreamContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	streams := make([]*StreamContext, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	return streams
}

// addStream registers a new stream context. Fails when the id is already
// live on this connection.
func (c *Conn) addStream(stream *StreamContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.streams[stream.id]; exists {
		return errors.WrapInvalid(errors.ErrStream, "Conn", "addStream",
			fmt.Sprintf("stream id %s already active", stream.id))
	}
	c.streams[stream.id] = stream
	return nil
}

// evict removes a terminal stream from the table.
func (c *Conn) evict(stream *StreamContext) {
	c.mu.Lock()
	_, present := c.streams[stream.id]
	delete(c.streams, stream.id)
	c.mu.Unlock()

	if present && c.engine.metrics != nil {
		c.engine.metrics.streamsActive.Dec()
	}
}

// OpenStream starts a server-initiated stream and sends its start frame.
// The generated id fits the binary frame header.
func (c *Conn) OpenStream(meta Meta) (*StreamContext, error) {
	id := "srv-" + uuid.NewString()[:12]
	stream := newStreamContext(id, meta)

	if err := c.addStream(stream); err != nil {
		return nil, err
	}

	metaCopy := meta
	if err := c.sendControl(ControlFrame{Type: TypeStart, ID: id, Meta: &metaCopy}); err != nil {
		c.evict(stream)
		return nil, err
	}

	c.engine.noteStreamOpened()
	return stream, nil
}

// SendChunk sends one text chunk on a stream. The payload is marshaled
// into the control frame.
func (c *Conn) SendChunk(stream *StreamContext, payload any) error {
	if stream.Binary() {
		return errors.WrapInvalid(errors.ErrChunkWrongMode, "Conn", "SendChunk",
			"binary streams send chunks as binary frames")
	}
	if stream.Terminal() || stream.LocalDone() {
		return errors.WrapInvalid(errors.ErrStreamClosed, "Conn", "SendChunk", stream.id)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapInvalid(err, "Conn", "SendChunk", "marshaling chunk payload")
	}

	stream.touch()
	return c.sendControl(ControlFrame{Type: TypeChunk, ID: stream.id, Payload: data})
}

// SendBinaryChunk sends one binary chunk on a stream.
func (c *Conn) SendBinaryChunk(stream *StreamContext, index uint64, payload []byte) error {
	if !stream.Binary() {
		return errors.WrapInvalid(errors.ErrChunkWrongMode, "Conn", "SendBinaryChunk",
			"text streams send chunks as control frames")
	}
	if stream.Terminal() || stream.LocalDone() {
		return errors.WrapInvalid(errors.ErrStreamClosed, "Conn", "SendBinaryChunk", stream.id)
	}

	frame, err := EncodeBinaryFrame(stream.id, index, payload)
	if err != nil {
		return err
	}

	stream.touch()
	return c.enqueue(outFrame{messageType: websocket.BinaryMessage, data: frame})
}

// SendDone half-closes this side of a stream with an optional summary. The
// stream is evicted once both sides are done.
func (c *Conn) SendDone(stream *StreamContext, summary map[string]any) error {
	if stream.Terminal() {
		return errors.WrapInvalid(errors.ErrStreamClosed, "Conn", "SendDone", stream.id)
	}

	if err := c.sendControl(ControlFrame{Type: TypeDone, ID: stream.id, Summary: summary}); err != nil {
		return err
	}

	if stream.markLocalDone() {
		c.evict(stream)
		c.engine.noteStreamCompleted()
	}
	return nil
}

// SendError aborts a stream. The error frame is best-effort; the stream is
// terminal either way.
func (c *Conn) SendError(stream *StreamContext, code int, message string) error {
	stream.markErrored()
	c.evict(stream)
	c.engine.noteStreamErrored()

	return c.sendControl(ControlFrame{
		Type:  TypeError,
		ID:    stream.id,
		Error: &ErrorDetail{Code: code, Message: message},
	})
}

// sendControl stamps and queues one control frame.
func (c *Conn) sendControl(frame ControlFrame) error {
	frame.Timestamp = time.Now().UnixMilli()

	data, err := json.Marshal(frame)
	if err != nil {
		return errors.WrapInvalid(err, "Conn", "sendControl", "marshaling control frame")
	}
	return c.enqueue(outFrame{messageType: websocket.TextMessage, data: data})
}

// enqueue hands a frame to the writer goroutine. A connection whose queue
// stays full past the write timeout is torn down as a slow consumer.
func (c *Conn) enqueue(f outFrame) error {
	select {
	case <-c.closed:
		return errors.WrapTransient(errors.ErrConnectionLost, "Conn", "enqueue", "connection closed")
	default:
	}

	select {
	case c.outbound <- f:
		return nil
	case <-c.closed:
		return errors.WrapTransient(errors.ErrConnectionLost, "Conn", "enqueue", "connection closed")
	case <-time.After(c.engine.config.WriteTimeout):
		c.logger.Warn("outbound queue stalled, closing connection")
		c.teardown()
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Conn", "enqueue", "slow duplex consumer")
	}
}

// writeLoop is the single writer for this connection.
func (c *Conn) writeLoop() {
	ping := time.NewTicker(c.engine.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.closed:
			return
		case f := <-c.outbound:
			c.ws.SetWriteDeadline(time.Now().Add(c.engine.config.WriteTimeout))
			if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.teardown()
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.engine.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown()
				return
			}
		}
	}
}

// readLoop consumes frames until the peer disconnects.
func (c *Conn) readLoop() {
	defer c.teardown()

	pongWait := c.engine.config.PingInterval * 2
	c.ws.SetReadLimit(c.engine.config.MaxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection lost", "error", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.handleControl(data)
		case websocket.BinaryMessage:
			c.handleBinary(data)
		}
	}
}

// handleControl processes one inbound control frame. Frame-level failures
// stay scoped to their stream; the connection survives.
func (c *Conn) handleControl(data []byte) {
	frame, err := ParseControlFrame(data)
	if err != nil {
		c.logger.Warn("rejecting malformed control frame", "error", err)
		c.engine.noteFrameRejected()
		return
	}

	c.engine.noteActivity()

	switch frame.Type {
	case TypeStart:
		c.handleStart(frame)
	case TypeChunk:
		c.handleChunk(frame)
	case TypeDone:
		c.handleDone(frame)
	case TypeError:
		c.handleError(frame)
	}
}

func (c *Conn) handleStart(frame ControlFrame) {
	meta := Meta{}
	if frame.Meta != nil {
		meta = *frame.Meta
	}

	stream := newStreamContext(frame.ID, meta)
	if err := c.addStream(stream); err != nil {
		c.logger.Warn("rejecting duplicate stream id", "stream_id", frame.ID)
		c.engine.noteFrameRejected()
		return
	}

	c.engine.noteStreamOpened()
	c.logger.Debug("stream opened", "stream_id", frame.ID, "method", meta.Method, "binary", meta.Binary)

	if relay := c.engine.relay(meta.Method); relay != nil {
		go relay(c, stream)
	}
}

func (c *Conn) handleChunk(frame ControlFrame) {
	stream, ok := c.Stream(frame.ID)
	if !ok {
		c.logger.Warn("rejecting chunk for unknown or terminal stream", "stream_id", frame.ID)
		c.engine.noteFrameRejected()
		return
	}

	if stream.Binary() {
		// Control chunks on a binary stream abort that stream only
		c.SendError(stream, 0, "binary stream received a control chunk")
		return
	}

	stream.recordChunk(len(frame.Payload))
	c.engine.noteBytes(len(frame.Payload))
}

func (c *Conn) handleBinary(data []byte) {
	streamID, _, payload, err := DecodeBinaryFrame(data)
	if err != nil {
		c.logger.Warn("rejecting malformed binary frame", "error", err)
		c.engine.noteFrameRejected()
		return
	}

	c.engine.noteActivity()

	stream, ok := c.Stream(streamID)
	if !ok {
		c.logger.Warn("rejecting binary frame for unknown or terminal stream", "stream_id", streamID)
		c.engine.noteFrameRejected()
		return
	}

	if !stream.Binary() {
		c.SendError(stream, 0, "text stream received a binary frame")
		return
	}

	stream.recordChunk(len(payload))
	c.engine.noteBytes(len(payload))
}

// handleDone records the peer's half-close. When this side has not opened
// its own response, the engine completes the exchange with a receipt
// summary so uploads always get an acknowledgement.
func (c *Conn) handleDone(frame ControlFrame) {
	stream, ok := c.Stream(frame.ID)
	if !ok {
		c.logger.Warn("rejecting done for unknown or terminal stream", "stream_id", frame.ID)
		c.engine.noteFrameRejected()
		return
	}

	alreadyLocalDone := stream.LocalDone()
	if stream.markRemoteDone() {
		c.evict(stream)
		c.engine.noteStreamCompleted()
		return
	}

	if !alreadyLocalDone {
		summary := map[string]any{
			"bytesReceived": stream.BytesReceived(),
			"chunks":        stream.ChunksReceived(),
		}
		if err := c.SendDone(stream, summary); err != nil {
			c.logger.Warn("failed to acknowledge stream", "stream_id", frame.ID, "error", err)
		}
	}
}

func (c *Conn) handleError(frame ControlFrame) {
	stream, ok := c.Stream(frame.ID)
	if !ok {
		c.engine.noteFrameRejected()
		return
	}

	message := ""
	if frame.Error != nil {
		message = frame.Error.Message
	}
	c.logger.Debug("peer aborted stream", "stream_id", frame.ID, "message", message)

	stream.markErrored()
	c.evict(stream)
	c.engine.noteStreamErrored()
}

// teardown closes the connection and force-errors every live stream.
// Idempotent.
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		close(c.closed)

		for _, stream := range c.snapshotStreams() {
			stream.markClosed()
			c.evict(stream)
			c.engine.noteStreamErrored()
		}

		c.ws.Close()
		c.engine.removeConn(c)
		c.logger.Debug("connection closed")
	})
}
