package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/graphrun/internal/engine"
	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
)

// handleStreamLogs streams a run's log as server-sent events: first the
// entries already recorded, then new entries as the run appends them, and
// finally a "done" event once the run has ended.
func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run_id")

	run, err := s.runs.Get(id)
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run_id not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for logs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe before reading the history so no entry falls between the two.
	// A finished run has a closed topic, which ends the loop below at once.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	stream := &logStream{w: w, run: run}
	if err := stream.catchUp(-1); err != nil {
		return
	}
	flush()

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				// The broker may have dropped entries for a slow reader; the
				// run record has them all.
				if err := stream.catchUp(-1); err != nil {
					return
				}
				_ = writeSSEEvent(w, "done", "stream complete")
				flush()
				return
			}
			if err := stream.send(entry); err != nil {
				return // Write failed (e.g. client gone).
			}
			flush()
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// logStream writes a run's log entries in order, exactly once each.
type logStream struct {
	w    http.ResponseWriter
	run  *model.Run
	next int
}

// send writes entry after filling any gap before it from the run record.
// Entries already written are skipped.
func (ls *logStream) send(entry engine.LogEntry) error {
	if entry.Seq < ls.next {
		return nil
	}
	if entry.Seq > ls.next {
		if err := ls.catchUp(entry.Seq); err != nil {
			return err
		}
	}
	if err := writeSSEData(ls.w, entry.Line); err != nil {
		return err
	}
	ls.next = entry.Seq + 1
	return nil
}

// catchUp writes recorded entries from the current position up to, but not
// including, until. A negative until writes everything recorded so far.
func (ls *logStream) catchUp(until int) error {
	logs := ls.run.Logs()
	if until < 0 || until > len(logs) {
		until = len(logs)
	}
	for ; ls.next < until; ls.next++ {
		if err := writeSSEData(ls.w, logs[ls.next]); err != nil {
			return err
		}
	}
	return nil
}

// writeSSEData writes a log line as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, line string) error {
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
