// Package wsink delivers refreshes over a websocket connection, one
// message per refresh.
package wsink

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dannyswat/vcrefresh"
	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn a Writer uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// Writer buffers everything written to it until Flush, so a walk that
// fails halfway never reaches the client. It is not safe for concurrent
// use.
type Writer struct {
	conn    Conn
	buf     bytes.Buffer
	timeout time.Duration
}

type Option func(*Writer)

// WithWriteTimeout bounds each Flush. Zero means no deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *Writer) { w.timeout = d }
}

func New(conn Conn, opts ...Option) *Writer {
	w := &Writer{conn: conn}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Buffered returns the number of bytes waiting for Flush.
func (w *Writer) Buffered() int { return w.buf.Len() }

// Discard drops the buffered bytes.
func (w *Writer) Discard() { w.buf.Reset() }

// Flush sends the buffered bytes as one text message. Nothing is sent when
// the buffer is empty. The buffer is reset even when sending fails.
func (w *Writer) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	defer w.buf.Reset()
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, w.buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send refresh: %w", err)
	}
	return nil
}

// Send writes cur through h and sends it as a single message. h commits
// cur only once the message is sent: when the walk or the send fails, the
// partial output is discarded and h keeps its predecessor, so Send can be
// called again with the same tree.
func (w *Writer) Send(h *vcrefresh.History, cur *vcrefresh.Tree) (vcrefresh.Stats, error) {
	w.Discard()
	stats, err := h.WriteTo(w, cur)
	if err != nil {
		w.Discard()
		return stats, err
	}
	if err := w.Flush(); err != nil {
		return stats, err
	}
	h.Commit(cur)
	return stats, nil
}
