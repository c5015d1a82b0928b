package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"google.golang.org/grpc"
)

var errStreamClosed = errors.New("rpc: stream closed")

// StreamTransport adapts a JSON-coded gRPC stream to realtime.Transport.
// A server stream cannot be closed from the handler side, so reads run in
// a pump goroutine that Close detaches from; the stream itself ends when
// the handler returns.
type StreamTransport struct {
	stream grpc.ServerStream
	frames chan []byte
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func NewStreamTransport(stream grpc.ServerStream) *StreamTransport {
	t := &StreamTransport{
		stream: stream,
		frames: make(chan []byte),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go t.pump()
	return t
}

func (t *StreamTransport) pump() {
	for {
		var raw json.RawMessage
		if err := t.stream.RecvMsg(&raw); err != nil {
			t.errs <- err
			return
		}
		select {
		case t.frames <- raw:
		case <-t.closed:
			return
		}
	}
}

// ReadFrame returns io.EOF once the client half-closes.
func (t *StreamTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-t.frames:
		return frame, nil
	case err := <-t.errs:
		return nil, err
	case <-t.closed:
		return nil, errStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *StreamTransport) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return errStreamClosed
	default:
	}
	return t.stream.SendMsg(json.RawMessage(frame))
}

func (t *StreamTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}
