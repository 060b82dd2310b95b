// Package sqlite implements corpus.Store on top of modernc.org/sqlite, a
// CGO-free pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
)

type store struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite-backed corpus store at path,
// with WAL journaling enabled for concurrent readers during ingestion.
func Open(ctx context.Context, path string) (corpus.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite corpus: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	pmid           INTEGER PRIMARY KEY,
	pub_year       INTEGER NOT NULL DEFAULT 0,
	title          TEXT NOT NULL DEFAULT '',
	abstract       TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	citation_count INTEGER NOT NULL DEFAULT 0,
	impact_factor  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS origins (
	pmid   INTEGER NOT NULL,
	origin TEXT NOT NULL,
	UNIQUE(pmid, origin),
	FOREIGN KEY(pmid) REFERENCES documents(pmid) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS dirty_pmids (
	pmid INTEGER PRIMARY KEY
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *store) Close() error { return s.db.Close() }

// Upsert merges a single document update into the store. Unset (nil)
// fields are left untouched via SQL COALESCE against the stored row —
// this is the partial-update semantics the corpus preserves across
// repeated ingestion of the same PMID from different sources.
func (s *store) Upsert(ctx context.Context, u corpus.Update) error {
	return s.upsertTx(ctx, func(tx *sql.Tx) error {
		return upsertOne(ctx, tx, u)
	})
}

func (s *store) UpsertMany(ctx context.Context, us []corpus.Update) error {
	return s.upsertTx(ctx, func(tx *sql.Tx) error {
		for _, u := range us {
			if err := upsertOne(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store) upsertTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertOne(ctx context.Context, tx *sql.Tx, u corpus.Update) error {
	const stmt = `
INSERT INTO documents (pmid, pub_year, title, abstract, body, citation_count, impact_factor)
VALUES (?1, COALESCE(?2, 0), COALESCE(?3, ''), COALESCE(?4, ''), COALESCE(?5, ''), COALESCE(?6, 0), COALESCE(?7, 0))
ON CONFLICT(pmid) DO UPDATE SET
	pub_year       = COALESCE(?2, documents.pub_year),
	title          = COALESCE(?3, documents.title),
	abstract       = COALESCE(?4, documents.abstract),
	body           = COALESCE(?5, documents.body),
	citation_count = COALESCE(?6, documents.citation_count),
	impact_factor  = COALESCE(?7, documents.impact_factor);
`
	if _, err := tx.ExecContext(ctx, stmt,
		u.PMID, nullableInt(u.PubYear), nullableString(u.Title), nullableString(u.Abstract),
		nullableString(u.Body), nullableInt64(u.CitationCount), nullableFloat64(u.ImpactFactor),
	); err != nil {
		return fmt.Errorf("upsert pmid %d: %w", u.PMID, err)
	}

	if u.Origin != nil && *u.Origin != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO origins (pmid, origin) VALUES (?, ?)`, u.PMID, *u.Origin,
		); err != nil {
			return fmt.Errorf("record origin for pmid %d: %w", u.PMID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO dirty_pmids (pmid) VALUES (?)`, u.PMID,
	); err != nil {
		return fmt.Errorf("mark pmid %d dirty: %w", u.PMID, err)
	}

	return nil
}

func (s *store) Get(ctx context.Context, pmid int64) (corpus.Document, bool, error) {
	docs, err := s.GetMany(ctx, []int64{pmid})
	if err != nil {
		return corpus.Document{}, false, err
	}
	if len(docs) == 0 {
		return corpus.Document{}, false, nil
	}
	return docs[0], true, nil
}

func (s *store) GetMany(ctx context.Context, pmids []int64) ([]corpus.Document, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pmids)), ",")
	args := make([]any, len(pmids))
	for i, p := range pmids {
		args[i] = p
	}

	query := fmt.Sprintf(`
SELECT pmid, pub_year, title, abstract, body, citation_count, impact_factor
FROM documents WHERE pmid IN (%s);
`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []corpus.Document
	for rows.Next() {
		var d corpus.Document
		if err := rows.Scan(&d.PMID, &d.PubYear, &d.Title, &d.Abstract, &d.Body, &d.CitationCount, &d.ImpactFactor); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *store) Delete(ctx context.Context, pmids []int64) error {
	if len(pmids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pmids)), ",")
	args := make([]any, len(pmids))
	for i, p := range pmids {
		args[i] = p
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM documents WHERE pmid IN (%s)`, placeholders), args...)
	return err
}

func (s *store) Origins(ctx context.Context, pmid int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin FROM origins WHERE pmid=? ORDER BY origin`, pmid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		origins = append(origins, o)
	}
	return origins, rows.Err()
}

func (s *store) AllOrigins(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT origin FROM origins ORDER BY origin`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		origins = append(origins, o)
	}
	return origins, rows.Err()
}

// DeleteAll drops every row from documents (cascading to origins via the
// foreign key) and dirty_pmids, returning how many documents were removed.
func (s *store) DeleteAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.upsertTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM origins`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dirty_pmids`); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *store) DirtyPMIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `SELECT pmid FROM dirty_pmids ORDER BY pmid`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pmids []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		pmids = append(pmids, p)
	}
	return pmids, rows.Err()
}

func (s *store) ClearDirty(ctx context.Context, pmids []int64) error {
	if len(pmids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pmids)), ",")
	args := make([]any, len(pmids))
	for i, p := range pmids {
		args[i] = p
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM dirty_pmids WHERE pmid IN (%s)`, placeholders), args...)
	return err
}

func (s *store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (s *store) All(ctx context.Context, fn func(corpus.Document) error) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT pmid, pub_year, title, abstract, body, citation_count, impact_factor
FROM documents ORDER BY pmid;
`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d corpus.Document
		if err := rows.Scan(&d.PMID, &d.PubYear, &d.Title, &d.Abstract, &d.Body, &d.CitationCount, &d.ImpactFactor); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
