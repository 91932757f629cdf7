// internal/journal/jsonl.go
//
// Compressed JSONL stream of released events, one file per UTC hour.
// This is the durable record; the SQLite journal is a queryable index
// over the same events.

package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kgang/agenttown/internal/town"
)

// EventLog writes events as zstd-compressed JSONL, rotating hourly.
type EventLog struct {
	baseDir string
	prefix  string
	clock   func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// EventLogOption customizes an EventLog.
type EventLogOption func(*EventLog)

// EventLogWithClock injects the rotation clock.
func EventLogWithClock(clock func() time.Time) EventLogOption {
	return func(l *EventLog) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewEventLog creates a writer rooted at baseDir.
func NewEventLog(baseDir string, opts ...EventLogOption) *EventLog {
	l := &EventLog{
		baseDir: baseDir,
		prefix:  "events",
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Publish appends one event line. Satisfies the governor's Sink contract.
func (l *EventLog) Publish(event town.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.clock().UTC().Format("2006-01-02-15")
	if hour != l.curHour {
		if err := l.rotateLocked(hour); err != nil {
			return fmt.Errorf("journal: rotate event log: %w", err)
		}
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("journal: encode event %s: %w", event.ID, err)
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the current segment.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *EventLog) rotateLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	path := l.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.curHour = hour
	return nil
}

func (l *EventLog) closeLocked() error {
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	return err
}

func (l *EventLog) pathForHour(hour string) string {
	return filepath.Join(l.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour))
}

// ReadEventLog decodes every event from one compressed segment.
func ReadEventLog(path string) ([]town.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open segment: %w", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("journal: zstd reader: %w", err)
	}
	defer dec.Close()
	var out []town.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event town.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("journal: decode line: %w", err)
		}
		out = append(out, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan segment: %w", err)
	}
	return out, nil
}
