// Package store persists assembled models and their validation reports
// to SQLite, and loads prior editions back for cross-version checks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simdoc/simdoc/dbopen"
	"github.com/simdoc/simdoc/sim"
)

// Schema creates all tables. Fields hang off segments, segments off
// messages, everything off a document row; ON DELETE CASCADE keeps
// re-imports clean.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	standard TEXT NOT NULL,
	edition TEXT NOT NULL,
	transport_unit TEXT NOT NULL,
	source TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_standard ON documents(standard, edition, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	label TEXT NOT NULL,
	title TEXT,
	purpose TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_doc ON messages(doc_id, ord);

CREATE TABLE IF NOT EXISTS segments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	seg_idx INTEGER NOT NULL,
	type TEXT NOT NULL,
	bit_len INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_message ON segments(message_id, seg_idx);

CREATE TABLE IF NOT EXISTS fields (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	segment_id INTEGER NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	name TEXT NOT NULL,
	bit_start INTEGER NOT NULL,
	bit_end INTEGER NOT NULL,
	encoding TEXT NOT NULL,
	units TEXT,
	description TEXT,
	confidence REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_fields_segment ON fields(segment_id, ord);

CREATE TABLE IF NOT EXISTS dictionary_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	category_id INTEGER NOT NULL,
	sub_id INTEGER NOT NULL DEFAULT 0,
	item_id TEXT NOT NULL DEFAULT '',
	name TEXT,
	description TEXT
);
CREATE INDEX IF NOT EXISTS idx_dictionary_doc ON dictionary_entries(doc_id, category_id, sub_id, item_id);

CREATE TABLE IF NOT EXISTS enum_defs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	key TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS enum_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	enum_id INTEGER NOT NULL REFERENCES enum_defs(id) ON DELETE CASCADE,
	ord INTEGER NOT NULL,
	code TEXT NOT NULL,
	label TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS unit_defs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	symbol TEXT NOT NULL,
	base_si TEXT,
	factor REAL NOT NULL DEFAULT 1,
	si_offset REAL NOT NULL DEFAULT 0,
	description TEXT
);

CREATE TABLE IF NOT EXISTS issues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	severity TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	target_path TEXT,
	message TEXT NOT NULL,
	suggested_fix TEXT
);
CREATE INDEX IF NOT EXISTS idx_issues_doc ON issues(doc_id, severity);
`

// ErrNotFound is returned when a document id or edition lookup misses.
var ErrNotFound = errors.New("store: document not found")

// Store wraps the catalog database.
type Store struct {
	db *sql.DB
}

// New wraps an already-open database; the schema must be applied.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Open opens (or creates) the catalog at path with the schema applied.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Import persists a model and its report in one transaction and
// returns the new document id.
func (s *Store) Import(ctx context.Context, m *sim.Model, report sim.Report) (string, error) {
	if m == nil {
		return "", fmt.Errorf("store: nil model")
	}
	docID := uuid.NewString()

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, standard, edition, transport_unit, source, page_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			docID, m.Standard, m.Edition, string(m.TransportUnit),
			m.Metadata.Source, m.Metadata.PageCount, m.Metadata.CreatedAt); err != nil {
			return fmt.Errorf("store: insert document: %w", err)
		}

		for ord, msg := range m.Messages {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO messages (doc_id, ord, label, title, purpose) VALUES (?, ?, ?, ?, ?)`,
				docID, ord, msg.Label, msg.Title, msg.Purpose)
			if err != nil {
				return fmt.Errorf("store: insert message %s: %w", msg.Label, err)
			}
			msgID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for _, seg := range msg.Segments {
				res, err := tx.ExecContext(ctx, `
					INSERT INTO segments (message_id, seg_idx, type, bit_len) VALUES (?, ?, ?, ?)`,
					msgID, seg.SegIdx, seg.Type, seg.BitLen)
				if err != nil {
					return fmt.Errorf("store: insert segment: %w", err)
				}
				segID, err := res.LastInsertId()
				if err != nil {
					return err
				}
				for ord, f := range seg.Fields {
					if _, err := tx.ExecContext(ctx, `
						INSERT INTO fields (segment_id, ord, name, bit_start, bit_end, encoding, units, description, confidence)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
						segID, ord, f.Name, f.Bits.Start, f.Bits.End,
						string(f.Encoding), f.Units, f.Description, f.Confidence); err != nil {
						return fmt.Errorf("store: insert field %s: %w", f.Name, err)
					}
				}
			}
		}

		for _, e := range m.Dictionary {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dictionary_entries (doc_id, category_id, sub_id, item_id, name, description)
				VALUES (?, ?, ?, ?, ?, ?)`,
				docID, e.CategoryID, e.SubID, e.ItemID, e.Name, e.Description); err != nil {
				return fmt.Errorf("store: insert dictionary entry: %w", err)
			}
		}

		for _, e := range m.Enums {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO enum_defs (doc_id, key) VALUES (?, ?)`, docID, e.Key)
			if err != nil {
				return fmt.Errorf("store: insert enum %s: %w", e.Key, err)
			}
			enumID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for ord, item := range e.Items {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO enum_items (enum_id, ord, code, label, description) VALUES (?, ?, ?, ?, ?)`,
					enumID, ord, item.Code, item.Label, item.Description); err != nil {
					return fmt.Errorf("store: insert enum item: %w", err)
				}
			}
		}

		for _, u := range m.Units {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO unit_defs (doc_id, symbol, base_si, factor, si_offset, description)
				VALUES (?, ?, ?, ?, ?, ?)`,
				docID, u.Symbol, u.BaseSI, u.Factor, u.Offset, u.Description); err != nil {
				return fmt.Errorf("store: insert unit %s: %w", u.Symbol, err)
			}
		}

		for _, issue := range report {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO issues (doc_id, severity, rule_id, target_path, message, suggested_fix)
				VALUES (?, ?, ?, ?, ?, ?)`,
				docID, string(issue.Severity), issue.RuleID, issue.Path, issue.Message, issue.Fix); err != nil {
				return fmt.Errorf("store: insert issue: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return docID, nil
}

// FindLatest returns the most recently imported document id for a
// standard and edition.
func (s *Store) FindLatest(ctx context.Context, standard, edition string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM documents WHERE standard = ? AND edition = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, standard, edition).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: find latest: %w", err)
	}
	return id, nil
}

// LoadModel reconstructs a stored model by document id.
func (s *Store) LoadModel(ctx context.Context, docID string) (*sim.Model, error) {
	m := &sim.Model{}
	err := s.db.QueryRowContext(ctx, `
		SELECT standard, edition, transport_unit, source, page_count, created_at
		FROM documents WHERE id = ?`, docID).
		Scan(&m.Standard, &m.Edition, &m.TransportUnit,
			&m.Metadata.Source, &m.Metadata.PageCount, &m.Metadata.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load document: %w", err)
	}

	if err := s.loadMessages(ctx, docID, m); err != nil {
		return nil, err
	}
	if err := s.loadDictionary(ctx, docID, m); err != nil {
		return nil, err
	}
	if err := s.loadEnums(ctx, docID, m); err != nil {
		return nil, err
	}
	if err := s.loadUnits(ctx, docID, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) loadMessages(ctx context.Context, docID string, m *sim.Model) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, title, purpose FROM messages WHERE doc_id = ? ORDER BY ord`, docID)
	if err != nil {
		return fmt.Errorf("store: load messages: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var msg sim.Message
		if err := rows.Scan(&id, &msg.Label, &msg.Title, &msg.Purpose); err != nil {
			return err
		}
		m.Messages = append(m.Messages, msg)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		if err := s.loadSegments(ctx, id, &m.Messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadSegments(ctx context.Context, msgID int64, msg *sim.Message) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seg_idx, type, bit_len FROM segments WHERE message_id = ? ORDER BY seg_idx`, msgID)
	if err != nil {
		return fmt.Errorf("store: load segments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var seg sim.Segment
		if err := rows.Scan(&id, &seg.SegIdx, &seg.Type, &seg.BitLen); err != nil {
			return err
		}
		msg.Segments = append(msg.Segments, seg)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		if err := s.loadFields(ctx, id, &msg.Segments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadFields(ctx context.Context, segID int64, seg *sim.Segment) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, bit_start, bit_end, encoding, units, description, confidence
		FROM fields WHERE segment_id = ? ORDER BY ord`, segID)
	if err != nil {
		return fmt.Errorf("store: load fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f sim.FieldRecord
		if err := rows.Scan(&f.Name, &f.Bits.Start, &f.Bits.End,
			&f.Encoding, &f.Units, &f.Description, &f.Confidence); err != nil {
			return err
		}
		seg.Fields = append(seg.Fields, f)
	}
	return rows.Err()
}

func (s *Store) loadDictionary(ctx context.Context, docID string, m *sim.Model) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, sub_id, item_id, name, description
		FROM dictionary_entries WHERE doc_id = ?
		ORDER BY category_id, sub_id, item_id`, docID)
	if err != nil {
		return fmt.Errorf("store: load dictionary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e sim.DictionaryEntry
		if err := rows.Scan(&e.CategoryID, &e.SubID, &e.ItemID, &e.Name, &e.Description); err != nil {
			return err
		}
		m.Dictionary = append(m.Dictionary, e)
	}
	return rows.Err()
}

func (s *Store) loadEnums(ctx context.Context, docID string, m *sim.Model) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key FROM enum_defs WHERE doc_id = ? ORDER BY key`, docID)
	if err != nil {
		return fmt.Errorf("store: load enums: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var e sim.EnumDef
		if err := rows.Scan(&id, &e.Key); err != nil {
			return err
		}
		m.Enums = append(m.Enums, e)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		irows, err := s.db.QueryContext(ctx, `
			SELECT code, label, description FROM enum_items WHERE enum_id = ? ORDER BY ord`, id)
		if err != nil {
			return fmt.Errorf("store: load enum items: %w", err)
		}
		for irows.Next() {
			var item sim.EnumItem
			if err := irows.Scan(&item.Code, &item.Label, &item.Description); err != nil {
				irows.Close()
				return err
			}
			m.Enums[i].Items = append(m.Enums[i].Items, item)
		}
		if err := irows.Err(); err != nil {
			irows.Close()
			return err
		}
		irows.Close()
	}
	return nil
}

func (s *Store) loadUnits(ctx context.Context, docID string, m *sim.Model) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, base_si, factor, si_offset, description
		FROM unit_defs WHERE doc_id = ? ORDER BY symbol`, docID)
	if err != nil {
		return fmt.Errorf("store: load units: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u sim.UnitDef
		if err := rows.Scan(&u.Symbol, &u.BaseSI, &u.Factor, &u.Offset, &u.Description); err != nil {
			return err
		}
		m.Units = append(m.Units, u)
	}
	return rows.Err()
}

// Issues returns the stored validation report for a document.
func (s *Store) Issues(ctx context.Context, docID string) (sim.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, rule_id, target_path, message, suggested_fix
		FROM issues WHERE doc_id = ? ORDER BY id`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: load issues: %w", err)
	}
	defer rows.Close()

	var report sim.Report
	for rows.Next() {
		var i sim.Issue
		if err := rows.Scan(&i.Severity, &i.RuleID, &i.Path, &i.Message, &i.Fix); err != nil {
			return nil, err
		}
		report = append(report, i)
	}
	return report, rows.Err()
}
