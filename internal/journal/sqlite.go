// internal/journal/sqlite.go
//
// SQLite journal of released events. Writes funnel through a single
// writer goroutine so playback never contends on the database; queries
// read the same handle, which SQLite serializes. When the writer falls
// behind, events are dropped here — the JSONL stream stays the source
// of truth.

package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kgang/agenttown/internal/town"
)

const writeQueueSize = 4096

type sqliteReq struct {
	event town.Event
	// barrier requests carry no event; done is closed once every
	// earlier write has been applied.
	done chan struct{}
}

// SQLiteJournal persists events into a local SQLite database.
type SQLiteJournal struct {
	db     *sql.DB
	ch     chan sqliteReq
	wg     sync.WaitGroup
	once   sync.Once
	logger Logger

	// mu pairs every send on ch with the closed check, so Close can
	// never close the channel between the two.
	mu     sync.Mutex
	closed bool
}

// Logger records drop/diagnostic messages.
type Logger interface {
	Printf(format string, args ...any)
}

// OpenSQLite opens (creating if needed) the journal database at path and
// starts the writer goroutine. The logger may be nil.
func OpenSQLite(path string, logger Logger) (*SQLiteJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: ensure db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	j := &SQLiteJournal{
		db:     db,
		ch:     make(chan sqliteReq, writeQueueSize),
		logger: logger,
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			phase_index INTEGER NOT NULL,
			daypart TEXT NOT NULL,
			operation TEXT NOT NULL,
			region TEXT NOT NULL,
			participants TEXT NOT NULL,
			outcome_kind TEXT NOT NULL,
			note TEXT,
			topic TEXT,
			ts TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_run_phase ON events(run_id, phase_index);`,
		`CREATE INDEX IF NOT EXISTS idx_events_region ON events(region, phase_index);`,
		`CREATE TABLE IF NOT EXISTS participants (
			event_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			PRIMARY KEY (event_id, citizen_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_citizen ON participants(citizen_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the write queue and releases the database.
func (j *SQLiteJournal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.ch)
		j.mu.Unlock()
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

// Publish enqueues an event for persistence. Satisfies the governor's
// Sink contract; a full queue drops the event rather than stalling
// playback.
func (j *SQLiteJournal) Publish(event town.Event) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	select {
	case j.ch <- sqliteReq{event: event}:
	default:
		if j.logger != nil {
			j.logger.Printf("journal: dropped event %s (queue full)", event.ID)
		}
	}
	return nil
}

// Flush blocks until every event published before the call has been
// written.
func (j *SQLiteJournal) Flush() {
	if j == nil {
		return
	}
	done := make(chan struct{})
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.ch <- sqliteReq{done: done}
	j.mu.Unlock()
	<-done
}

func (j *SQLiteJournal) loop() {
	for req := range j.ch {
		if req.done != nil {
			close(req.done)
			continue
		}
		if err := j.insert(req.event); err != nil && j.logger != nil {
			j.logger.Printf("journal: insert %s: %v", req.event.ID, err)
		}
	}
}

func (j *SQLiteJournal) insert(event town.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ids := make([]string, len(event.Participants))
	for i, id := range event.Participants {
		ids[i] = string(id)
	}
	_, err = j.db.Exec(
		`INSERT OR REPLACE INTO events
		 (id, run_id, phase_index, daypart, operation, region, participants, outcome_kind, note, topic, ts, raw_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, event.PhaseIndex, string(event.Daypart), event.Operation,
		string(event.Region), strings.Join(ids, ","), event.Outcome.Kind,
		event.Outcome.Note, event.Outcome.Topic, event.Timestamp.UTC().Format(time.RFC3339Nano), string(raw),
	)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := j.db.Exec(
			`INSERT OR REPLACE INTO participants (event_id, citizen_id) VALUES (?, ?)`,
			event.ID, id,
		); err != nil {
			return err
		}
	}
	return nil
}

// EventsForPhase returns the journaled events of one phase, oldest first.
func (j *SQLiteJournal) EventsForPhase(runID string, phaseIndex int) ([]town.Event, error) {
	rows, err := j.db.Query(
		`SELECT raw_json FROM events WHERE run_id = ? AND phase_index = ? ORDER BY ts, id`,
		runID, phaseIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query phase %d: %w", phaseIndex, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForCitizen returns every journaled event a citizen took part in,
// oldest first.
func (j *SQLiteJournal) EventsForCitizen(id town.CitizenID) ([]town.Event, error) {
	rows, err := j.db.Query(
		`SELECT e.raw_json FROM events e
		 JOIN participants p ON p.event_id = e.id
		 WHERE p.citizen_id = ?
		 ORDER BY e.phase_index, e.ts, e.id`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("journal: query citizen %s: %w", id, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountsByPhase returns the number of journaled events per phase index
// for one run.
func (j *SQLiteJournal) CountsByPhase(runID string) (map[int]int, error) {
	rows, err := j.db.Query(
		`SELECT phase_index, COUNT(*) FROM events WHERE run_id = ? GROUP BY phase_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: phase counts: %w", err)
	}
	defer rows.Close()
	counts := map[int]int{}
	for rows.Next() {
		var phase, n int
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, fmt.Errorf("journal: scan counts: %w", err)
		}
		counts[phase] = n
	}
	return counts, rows.Err()
}

// Count returns the total number of journaled events.
func (j *SQLiteJournal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]town.Event, error) {
	var out []town.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		var event town.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("journal: decode event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
