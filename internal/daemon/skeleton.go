// Package daemon is the multi-client server skeleton both vrfyd and
// proxymapd run inside: accept loop, a pre-accept hook for table-change
// self-restart, and process lifecycle glue.
package daemon

import (
	"errors"
	"log/slog"
	"net"
	"sync"
)

// Service handles exactly one accepted connection. The skeleton closes the
// connection once Service returns, never while it is still running.
type Service func(conn net.Conn) error

// Skeleton is a single-process request server over a local stream listener,
// dispatching each accepted connection to Service in its own goroutine.
type Skeleton struct {
	listener net.Listener
	service  Service
	logger   *slog.Logger

	// PreAccept runs before every Accept; returning a non-nil error stops
	// the loop (used for the table-change self-restart hook).
	PreAccept func() error

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSkeleton wraps an already-bound listener.
func NewSkeleton(listener net.Listener, service Service, logger *slog.Logger) *Skeleton {
	return &Skeleton{
		listener: listener,
		service:  service,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Serve runs the accept loop until Stop is called or PreAccept reports an
// error (table changed on disk). Each accepted connection is served in its
// own goroutine, so a slow or stuck client never blocks new accepts.
func (s *Skeleton) Serve() error {
	for {
		if s.PreAccept != nil {
			if err := s.PreAccept(); err != nil {
				s.logger.Info("pre-accept hook requested shutdown", "reason", err)
				return s.shutdown()
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accepting connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer c.Close()
			if err := s.service(c); err != nil {
				s.logger.Debug("connection closed", "error", err)
			}
		}(conn)
	}
}

func (s *Skeleton) shutdown() error {
	close(s.done)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Skeleton) Stop() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	return s.shutdown()
}
