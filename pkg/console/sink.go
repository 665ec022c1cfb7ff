package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SinkSet fans console output out to every configured sink, in the order
// the sinks were added. A write failure on one sink deactivates that sink
// and is recorded, but never interrupts delivery to the others and never
// ends the session.
//
// The set is written from the session dispatch loop only, so it does not
// lock around writes.
type SinkSet struct {
	log   zerolog.Logger
	sinks []*sink

	closeOnce sync.Once
	closeErr  error
}

type sink struct {
	name   string
	w      io.Writer
	closer io.Closer
	failed error
}

// NewSinkSet returns an empty sink set. Writes against an empty set
// discard their input, which lets output-only drains share the same path.
func NewSinkSet() *SinkSet {
	return &SinkSet{
		log: log.With().Str("component", "console-sinks").Logger(),
	}
}

// AddWriter adds a live-observation sink such as the process's stdout.
// The name identifies the sink in failure reports.
func (s *SinkSet) AddWriter(name string, w io.Writer) {
	s.sinks = append(s.sinks, &sink{name: name, w: w})
}

// AddLogFile adds a file sink at path, opened for append and created if
// absent. An existing file is never truncated. Writes go straight to the
// file descriptor, so data loss on abrupt termination is bounded to the
// write in flight.
func (s *SinkSet) AddLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.sinks = append(s.sinks, &sink{name: "log:" + path, w: f, closer: f})
	return nil
}

// Len returns the number of configured sinks, active or not.
func (s *SinkSet) Len() int {
	return len(s.sinks)
}

// Write delivers p to every active sink in order. A failing sink is marked
// inactive and skipped for the remainder of the session. Write always
// reports success to the caller; per-sink failures are available through
// Errors.
func (s *SinkSet) Write(p []byte) (int, error) {
	for _, sk := range s.sinks {
		if sk.failed != nil {
			continue
		}
		if _, err := sk.w.Write(p); err != nil {
			sk.failed = err
			s.log.Warn().Err(err).Str("sink", sk.name).Msg("sink write failed, deactivating")
		}
	}
	return len(p), nil
}

// Errors returns the recorded write failure for each deactivated sink,
// keyed by sink name.
func (s *SinkSet) Errors() map[string]error {
	var errs map[string]error
	for _, sk := range s.sinks {
		if sk.failed != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[sk.name] = sk.failed
		}
	}
	return errs
}

// Close closes file-backed sinks. Safe to call multiple times.
func (s *SinkSet) Close() error {
	s.closeOnce.Do(func() {
		for _, sk := range s.sinks {
			if sk.closer == nil {
				continue
			}
			if err := sk.closer.Close(); err != nil && s.closeErr == nil {
				s.closeErr = fmt.Errorf("close %s: %w", sk.name, err)
			}
		}
	})
	return s.closeErr
}
