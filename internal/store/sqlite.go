// Package store persists guardian slots in SQLite. Writes are funneled
// through a single background goroutine so the simulation tick never waits
// on disk; loads run synchronously on the login path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"wildkeep/server/internal/guardian"
)

const schema = `
CREATE TABLE IF NOT EXISTS guardian_slots (
	owner         TEXT    NOT NULL,
	slot          INTEGER NOT NULL,
	identity      INTEGER NOT NULL,
	level         INTEGER NOT NULL,
	archetype     INTEGER NOT NULL,
	abilities     TEXT    NOT NULL DEFAULT '',
	health        INTEGER NOT NULL DEFAULT 0,
	power         INTEGER NOT NULL DEFAULT 0,
	power_kind    INTEGER NOT NULL DEFAULT 0,
	visual_ref    INTEGER NOT NULL DEFAULT 0,
	equipment_ref INTEGER NOT NULL DEFAULT 0,
	dismissed     INTEGER NOT NULL DEFAULT 0,
	saved_at      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner, slot)
);
`

// Columns added after the first shipped schema. Open backfills any that are
// missing so a database written by an older version keeps loading, with the
// new fields reading back as their zero-value defaults.
var addedColumns = []struct {
	name string
	ddl  string
}{
	{"abilities", `abilities TEXT NOT NULL DEFAULT ''`},
	{"health", `health INTEGER NOT NULL DEFAULT 0`},
	{"power", `power INTEGER NOT NULL DEFAULT 0`},
	{"power_kind", `power_kind INTEGER NOT NULL DEFAULT 0`},
	{"visual_ref", `visual_ref INTEGER NOT NULL DEFAULT 0`},
	{"equipment_ref", `equipment_ref INTEGER NOT NULL DEFAULT 0`},
	{"dismissed", `dismissed INTEGER NOT NULL DEFAULT 0`},
	{"saved_at", `saved_at INTEGER NOT NULL DEFAULT 0`},
}

const defaultQueueSize = 256

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type writeOp struct {
	kind  opKind
	owner guardian.OwnerID
	slot  int
	rec   guardian.Record
}

// SQLite implements guardian.Store on a single database file.
type SQLite struct {
	db     *sql.DB
	queue  chan writeOp
	logger *log.Logger
	wg     sync.WaitGroup
	closed sync.Once
}

// Open creates or opens the database at path and starts the write loop.
// Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the writer goroutine and login loads.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	s := &SQLite{
		db:     db,
		queue:  make(chan writeOp, defaultQueueSize),
		logger: log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Save enqueues an upsert. Never blocks; when the queue is full the write
// is dropped and logged, the next save for the slot supersedes it anyway.
func (s *SQLite) Save(owner guardian.OwnerID, slot int, rec guardian.Record) {
	if rec.SavedAt == 0 {
		rec.SavedAt = time.Now().Unix()
	}
	select {
	case s.queue <- writeOp{kind: opSave, owner: owner, slot: slot, rec: rec}:
	default:
		s.logger.Printf("write queue full; dropped save owner=%s slot=%d", owner, slot)
	}
}

// Delete enqueues removal of one slot row.
func (s *SQLite) Delete(owner guardian.OwnerID, slot int) {
	select {
	case s.queue <- writeOp{kind: opDelete, owner: owner, slot: slot}:
	default:
		s.logger.Printf("write queue full; dropped delete owner=%s slot=%d", owner, slot)
	}
}

// LoadAll returns every stored slot for the owner, ordered by slot index.
// Rows written by older versions read back with zero-value defaults for
// columns they predate.
func (s *SQLite) LoadAll(owner guardian.OwnerID) ([]guardian.SlotRecord, error) {
	rows, err := s.db.Query(`SELECT slot, identity, level, archetype, abilities,
		health, power, power_kind, visual_ref, equipment_ref, dismissed, saved_at
		FROM guardian_slots WHERE owner = ? ORDER BY slot`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", owner, err)
	}
	defer rows.Close()

	var out []guardian.SlotRecord
	for rows.Next() {
		var (
			sr        guardian.SlotRecord
			identity  uint32
			archetype uint8
			abilities string
			powerKind uint8
			dismissed int
		)
		if err := rows.Scan(&sr.Index, &identity, &sr.Record.Level, &archetype,
			&abilities, &sr.Record.Health, &sr.Record.Power, &powerKind,
			&sr.Record.VisualRef, &sr.Record.EquipmentRef, &dismissed,
			&sr.Record.SavedAt); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", owner, err)
		}
		sr.Record.Identity = guardian.TemplateID(identity)
		sr.Record.Archetype = guardian.Archetype(archetype)
		sr.Record.PowerKind = guardian.PowerKind(powerKind)
		sr.Record.Abilities = decodeAbilities(abilities)
		sr.Record.Dismissed = dismissed != 0
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", owner, err)
	}
	return out, nil
}

// Close drains pending writes and closes the database.
func (s *SQLite) Close(ctx context.Context) error {
	var err error
	s.closed.Do(func() {
		close(s.queue)
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if closeErr := s.db.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

// migrate adds any column the open database predates.
func migrate(db *sql.DB) error {
	rows, err := db.Query(`PRAGMA table_info(guardian_slots)`)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, col := range addedColumns {
		if existing[col.name] {
			continue
		}
		if _, err := db.Exec(`ALTER TABLE guardian_slots ADD COLUMN ` + col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

func (s *SQLite) writeLoop() {
	defer s.wg.Done()
	for op := range s.queue {
		switch op.kind {
		case opSave:
			if err := s.upsert(op.owner, op.slot, op.rec); err != nil {
				s.logger.Printf("save owner=%s slot=%d failed: %v", op.owner, op.slot, err)
			}
		case opDelete:
			if _, err := s.db.Exec(`DELETE FROM guardian_slots WHERE owner = ? AND slot = ?`,
				string(op.owner), op.slot); err != nil {
				s.logger.Printf("delete owner=%s slot=%d failed: %v", op.owner, op.slot, err)
			}
		}
	}
}

func (s *SQLite) upsert(owner guardian.OwnerID, slot int, rec guardian.Record) error {
	dismissed := 0
	if rec.Dismissed {
		dismissed = 1
	}
	_, err := s.db.Exec(`INSERT INTO guardian_slots
		(owner, slot, identity, level, archetype, abilities,
		 health, power, power_kind, visual_ref, equipment_ref, dismissed, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, slot) DO UPDATE SET
		 identity = excluded.identity,
		 level = excluded.level,
		 archetype = excluded.archetype,
		 abilities = excluded.abilities,
		 health = excluded.health,
		 power = excluded.power,
		 power_kind = excluded.power_kind,
		 visual_ref = excluded.visual_ref,
		 equipment_ref = excluded.equipment_ref,
		 dismissed = excluded.dismissed,
		 saved_at = excluded.saved_at`,
		string(owner), slot, uint32(rec.Identity), rec.Level, uint8(rec.Archetype),
		encodeAbilities(rec.Abilities), rec.Health, rec.Power, uint8(rec.PowerKind),
		rec.VisualRef, rec.EquipmentRef, dismissed, rec.SavedAt)
	return err
}

func encodeAbilities(abilities [guardian.MaxAbilitySlots]guardian.AbilityID) string {
	parts := make([]string, len(abilities))
	for i, id := range abilities {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func decodeAbilities(encoded string) [guardian.MaxAbilitySlots]guardian.AbilityID {
	var out [guardian.MaxAbilitySlots]guardian.AbilityID
	if encoded == "" {
		return out
	}
	for i, part := range strings.Split(encoded, ",") {
		if i == guardian.MaxAbilitySlots {
			break
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			continue
		}
		out[i] = guardian.AbilityID(v)
	}
	return out
}
