/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// outboundFrame is one queued unit of work for a listener's writer goroutine.
type outboundFrame struct {
	binary bool
	data   []byte
	json   any
}

// listener owns one attached listener socket, its bounded outbound queue, and
// the goroutine that drains it. Overflow policy is drop-oldest-and-enqueue-newest
// per spec: a plain buffered channel only supports drop-newest under
// select/default, so delivery is backed by a slice-based ring guarded by a mutex
// instead.
type listener struct {
	id     string
	socket Socket
	logger zerolog.Logger

	depth     int
	threshold int

	mu             sync.Mutex
	pending        []outboundFrame
	overflowStreak int
	closed         bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newListener(id string, socket Socket, depth, overflowThreshold int, logger zerolog.Logger) *listener {
	l := &listener{
		id:        id,
		socket:    socket,
		logger:    logger.With().Str("listener_id", id).Logger(),
		depth:     depth,
		threshold: overflowThreshold,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go l.run()
	return l
}

// enqueue appends a frame, dropping the oldest pending frame if the queue is at
// capacity. Returns true if this enqueue caused a drop and the listener's
// consecutive-overflow count has now reached the slow-consumer threshold.
func (l *listener) enqueue(f outboundFrame) (slowConsumer bool) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if len(l.pending) >= l.depth {
		l.pending = l.pending[1:]
		l.overflowStreak++
		slowConsumer = l.overflowStreak >= l.threshold
	} else {
		l.overflowStreak = 0
	}
	l.pending = append(l.pending, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return slowConsumer
}

func (l *listener) sendBinary(data []byte) bool {
	return l.enqueue(outboundFrame{binary: true, data: data})
}

func (l *listener) sendJSON(v any) {
	l.enqueue(outboundFrame{json: v})
}

// run drains pending frames in FIFO order on a single goroutine per listener,
// so a stalled listener only ever blocks itself.
func (l *listener) run() {
	ctx := context.Background()
	for {
		select {
		case <-l.wake:
			for {
				l.mu.Lock()
				if len(l.pending) == 0 || l.closed {
					l.mu.Unlock()
					break
				}
				f := l.pending[0]
				l.pending = l.pending[1:]
				l.mu.Unlock()

				var err error
				if f.binary {
					err = l.socket.WriteBinary(ctx, f.data)
				} else {
					err = l.socket.WriteJSON(ctx, f.json)
				}
				if err != nil {
					l.logger.Debug().Err(err).Msg("listener write failed")
					l.stop()
					return
				}
			}
		case <-l.done:
			return
		}
	}
}

// stop closes the writer goroutine. Idempotent.
func (l *listener) stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.pending = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// drainAndStop gives the writer goroutine a brief chance to flush whatever is
// already queued (typically a final session-ended frame) before stopping it.
// Best-effort: a stalled socket write still bounds this to the caller's own
// patience, since it only waits on a signal, never on the write itself.
func (l *listener) drainAndStop() {
	l.mu.Lock()
	empty := len(l.pending) == 0
	l.mu.Unlock()
	if !empty {
		deadline := time.Now().Add(200 * time.Millisecond)
		for time.Now().Before(deadline) {
			l.mu.Lock()
			n := len(l.pending)
			l.mu.Unlock()
			if n == 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	l.stop()
}
