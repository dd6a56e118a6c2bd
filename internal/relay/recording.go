/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// recordingQueueCapacity bounds the number of pending write buffers. Sized
	// generously since entries are typically small WebM cluster chunks (a few KB).
	recordingQueueCapacity = 512
	// recordingFlushInterval is how often the writer goroutine flushes to disk
	// even when idle, so a killed process still loses at most this much audio.
	recordingFlushInterval = 250 * time.Millisecond
)

// RecordingSink is a sequential writer of opaque byte buffers to a single file,
// opened in append mode. Writes are buffered through a bounded channel drained by
// a dedicated writer goroutine so a slow disk never blocks the fan-out hot path.
type RecordingSink struct {
	path          string
	highWaterMark int
	lowWaterMark  int

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup

	mu        sync.Mutex
	draining  bool // true once write() has reported backpressure and onDrain has not yet fired
	onDrainFn func()
	lastErr   error // last flush error observed by the writer goroutine

	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewRecordingSink opens (or creates) the file at path in append mode and starts its
// writer goroutine. highWaterBytes approximates the queue depth at which write()
// starts reporting backpressure; queue depth is used rather than byte accounting
// because chunk sizes are small and roughly uniform for this codec.
func NewRecordingSink(path string, highWaterBytes int, logger zerolog.Logger) (*RecordingSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	high := highWaterBytes / 2048
	if high < 4 {
		high = 4
	}
	if high > recordingQueueCapacity-1 {
		high = recordingQueueCapacity - 1
	}
	low := high / 4
	if low < 1 {
		low = 1
	}

	s := &RecordingSink{
		path:          path,
		highWaterMark: high,
		lowWaterMark:  low,
		queue:         make(chan []byte, recordingQueueCapacity),
		done:          make(chan struct{}),
		logger:        logger.With().Str("path", path).Logger(),
	}
	s.wg.Add(1)
	go s.run(f)
	return s, nil
}

// Path returns the file path this sink writes to.
func (s *RecordingSink) Path() string {
	return s.path
}

// Write appends bytes to the recording. It returns true if the caller should
// continue sending at full rate, false if the producer should throttle. The
// returned value reflects queue depth immediately after this enqueue.
//
// Write races Close from a different goroutine (the broadcaster read loop
// forwarding a chunk can overlap teardown stopping the sink). s.queue is
// never closed, only s.done, so a racing send can never panic; once done
// fires, Write simply stops accepting and reports backpressure.
func (s *RecordingSink) Write(p []byte) bool {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.queue <- buf:
	case <-s.done:
		return false
	}

	depth := len(s.queue)
	accepted := depth < s.highWaterMark
	if !accepted {
		s.mu.Lock()
		s.draining = true
		s.mu.Unlock()
	}
	return accepted
}

// OnDrain registers the callback invoked when the write queue next falls to or
// below the low-water mark after having crossed the high-water mark. The
// registration is re-armable: each time backpressure is signalled again, the
// most recently registered callback fires again on the next drain.
func (s *RecordingSink) OnDrain(fn func()) {
	s.mu.Lock()
	s.onDrainFn = fn
	s.mu.Unlock()
}

// Close signals the writer goroutine to drain whatever is already queued,
// flush, and release the file, then waits for it to finish. Idempotent.
// s.queue itself is never closed, so a Write racing a concurrent Close can
// never panic on a send to a closed channel; it just stops being accepted
// once done fires.
func (s *RecordingSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *RecordingSink) run(f *os.File) {
	defer s.wg.Done()
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	ticker := time.NewTicker(recordingFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if err := w.Flush(); err != nil {
			s.logger.Warn().Err(err).Msg("recording flush failed")
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}
	defer flush()

	for {
		select {
		case buf := <-s.queue:
			if _, err := w.Write(buf); err != nil {
				s.logger.Warn().Err(err).Msg("recording write failed")
			}
			s.maybeSignalDrain()
		case <-ticker.C:
			flush()
			// Catches a backpressure latch set after the queue had already
			// drained, which no later dequeue would otherwise report.
			s.maybeSignalDrain()
		case <-s.done:
			s.drainPending(w)
			return
		}
	}
}

// drainPending flushes whatever is already sitting in the queue buffer at
// shutdown, without blocking for anything a racing Write might still enqueue
// after done has fired.
func (s *RecordingSink) drainPending(w *bufio.Writer) {
	for {
		select {
		case buf := <-s.queue:
			if _, err := w.Write(buf); err != nil {
				s.logger.Warn().Err(err).Msg("recording write failed")
			}
		default:
			return
		}
	}
}

func (s *RecordingSink) maybeSignalDrain() {
	if len(s.queue) > s.lowWaterMark {
		return
	}
	s.mu.Lock()
	if !s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = false
	fn := s.onDrainFn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
