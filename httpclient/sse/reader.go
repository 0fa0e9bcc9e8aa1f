// Package sse reads text/event-stream bodies, such as the console's live log
// feed at /api/sse/logs.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLine bounds a single field line. Log batches can be large.
const maxLine = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Event string
	// Data joins multiple data lines with "\n".
	Data string
	ID   string
	// Retry is the reconnection delay the server asked for, or 0.
	Retry time.Duration
}

// JSON decodes Data into v.
func (e *Event) JSON(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// Reader yields events from a stream.
type Reader interface {
	// Next returns io.EOF once the stream ends.
	Next() (*Event, error)
	Close() error
	// LastEventID is the most recent id seen, for resuming with
	// the Last-Event-ID header.
	LastEventID() string
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
	lastID  string
}

func NewReader(body io.ReadCloser) Reader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &reader{scanner: s, body: body}
}

func (r *reader) Next() (*Event, error) {
	var (
		ev    Event
		lines []string
		seen  bool
	)
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if len(lines) > 0 {
				ev.Data = strings.Join(lines, "\n")
				return &ev, nil
			}
			// A block with only id/event/retry fields is not dispatched.
			ev, seen = Event{}, false
			continue
		}
		if line[0] == ':' {
			continue
		}
		seen = true
		field, value := parseLine(line)
		switch field {
		case "data":
			lines = append(lines, value)
		case "event":
			ev.Event = value
		case "id":
			ev.ID = value
			r.lastID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if seen && len(lines) > 0 {
		ev.Data = strings.Join(lines, "\n")
		return &ev, nil
	}
	return nil, io.EOF
}

func (r *reader) Close() error { return r.body.Close() }

func (r *reader) LastEventID() string { return r.lastID }

func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
