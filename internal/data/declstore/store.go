// Package declstore persists declared-type hierarchies as labelled SQLite
// snapshots so a store can be rebuilt without re-reading sources.
package declstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"protoscope/internal/core/errors"
	"protoscope/internal/engine/hierarchy"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// Fixed-width so timestamps sort lexically.
	timeLayout   = "2006-01-02T15:04:05.000000000Z"
	DefaultLabel = "default"
)

type Info struct {
	ID             string
	Label          string
	OverridePolicy string
	CreatedAt      time.Time
	TypeCount      int
	MethodCount    int
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates the database file and its directory if needed and applies
// pending migrations. busyTimeout <= 0 uses 2s.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "snapshot database path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "snapshot database path is a directory"), errors.CtxPath, cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "create snapshot directory"), errors.CtxPath, dir)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "open sqlite"), errors.CtxPath, cleanPath)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "ping sqlite"), errors.CtxPath, cleanPath)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "initialize sqlite schema"), errors.CtxPath, cleanPath)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveSnapshot writes decls in one transaction and returns the new
// snapshot's metadata. An empty label means DefaultLabel.
func (s *Store) SaveSnapshot(ctx context.Context, label, policy string, decls []hierarchy.Declaration) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLabel
	}
	info := Info{
		ID:             uuid.NewString(),
		Label:          label,
		OverridePolicy: policy,
		CreatedAt:      time.Now().UTC(),
		TypeCount:      len(decls),
	}
	for _, decl := range decls {
		info.MethodCount += len(decl.Methods)
	}

	err := s.withRetry("save snapshot", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := insertSnapshot(ctx, tx, info, decls); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, info Info, decls []hierarchy.Declaration) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, label, created_at_utc, type_count, method_count, override_policy) VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.Label, info.CreatedAt.Format(timeLayout), info.TypeCount, info.MethodCount, info.OverridePolicy,
	); err != nil {
		return err
	}

	typeStmt, err := tx.PrepareContext(ctx, `INSERT INTO declared_types (snapshot_id, position, name, kind, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer typeStmt.Close()
	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO type_edges (snapshot_id, type_position, relation, position, target) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	methodStmt, err := tx.PrepareContext(ctx, `INSERT INTO method_slots (snapshot_id, type_position, position, name, visibility, is_abstract, is_static) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer methodStmt.Close()

	for i, decl := range decls {
		if _, err := typeStmt.ExecContext(ctx, info.ID, i, decl.Name, decl.Kind.String(), decl.Source); err != nil {
			return err
		}
		for relation, targets := range map[string][]string{
			"extends":    decl.Extends,
			"implements": decl.Implements,
			"uses":       decl.Uses,
		} {
			for j, target := range targets {
				if _, err := edgeStmt.ExecContext(ctx, info.ID, i, relation, j, target); err != nil {
					return err
				}
			}
		}
		for j, m := range decl.Methods {
			if _, err := methodStmt.ExecContext(ctx, info.ID, i, j, m.Name, m.Visibility.String(), m.Abstract, m.Static); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadSnapshot returns the declarations of snapshot id in their saved order.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (Info, []hierarchy.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.queryInfo(ctx, `WHERE id = ?`, id)
	if err != nil {
		return Info{}, nil, errors.AddContext(err, "snapshot", id)
	}
	decls, err := s.loadDeclarations(ctx, info.ID)
	if err != nil {
		return Info{}, nil, err
	}
	return info, decls, nil
}

// LatestSnapshot returns the newest snapshot saved under label.
func (s *Store) LatestSnapshot(ctx context.Context, label string) (Info, []hierarchy.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLabel
	}
	info, err := s.queryInfo(ctx, `WHERE label = ? ORDER BY created_at_utc DESC, rowid DESC LIMIT 1`, label)
	if err != nil {
		return Info{}, nil, errors.AddContext(err, "label", label)
	}
	decls, err := s.loadDeclarations(ctx, info.ID)
	if err != nil {
		return Info{}, nil, err
	}
	return info, decls, nil
}

// ListSnapshots returns every snapshot, oldest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("list snapshots", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, selectInfo+` ORDER BY created_at_utc ASC, rowid ASC`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := make([]Info, 0)
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate snapshot rows")
	}
	return infos, nil
}

// DeleteSnapshot removes a snapshot and its rows. Deleting a missing id is
// a NOT_FOUND error.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.withRetry("delete snapshot", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.AddContext(errors.New(errors.CodeNotFound, "snapshot not found"), "snapshot", id)
	}
	return nil
}

const selectInfo = `SELECT id, label, override_policy, created_at_utc, type_count, method_count FROM snapshots`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (Info, error) {
	var (
		info  Info
		tsRaw string
	)
	if err := row.Scan(&info.ID, &info.Label, &info.OverridePolicy, &tsRaw, &info.TypeCount, &info.MethodCount); err != nil {
		return Info{}, err
	}
	ts, err := time.Parse(timeLayout, tsRaw)
	if err != nil {
		return Info{}, errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("parse snapshot timestamp %q", tsRaw))
	}
	info.CreatedAt = ts.UTC()
	return info, nil
}

func (s *Store) queryInfo(ctx context.Context, where string, args ...any) (Info, error) {
	var info Info
	err := s.withRetry("load snapshot", func() error {
		var scanErr error
		info, scanErr = scanInfo(s.db.QueryRowContext(ctx, selectInfo+" "+where, args...))
		if scanErr == sql.ErrNoRows {
			return errors.New(errors.CodeNotFound, "snapshot not found")
		}
		return scanErr
	})
	return info, err
}

func (s *Store) loadDeclarations(ctx context.Context, id string) ([]hierarchy.Declaration, error) {
	var decls []hierarchy.Declaration
	err := s.withRetry("load declarations", func() error {
		var err error
		decls, err = s.readDeclarations(ctx, id)
		return err
	})
	return decls, err
}

func (s *Store) readDeclarations(ctx context.Context, id string) ([]hierarchy.Declaration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, source FROM declared_types WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	var decls []hierarchy.Declaration
	for rows.Next() {
		var decl hierarchy.Declaration
		var kind string
		if err := rows.Scan(&decl.Name, &kind, &decl.Source); err != nil {
			rows.Close()
			return nil, err
		}
		if decl.Kind, err = hierarchy.ParseKind(kind); err != nil {
			rows.Close()
			return nil, err
		}
		decls = append(decls, decl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT type_position, relation, target FROM type_edges WHERE snapshot_id = ? ORDER BY type_position, relation, position`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			pos              int
			relation, target string
		)
		if err := rows.Scan(&pos, &relation, &target); err != nil {
			rows.Close()
			return nil, err
		}
		if pos < 0 || pos >= len(decls) {
			rows.Close()
			return nil, fmt.Errorf("edge for unknown type position %d", pos)
		}
		switch relation {
		case "extends":
			decls[pos].Extends = append(decls[pos].Extends, target)
		case "implements":
			decls[pos].Implements = append(decls[pos].Implements, target)
		case "uses":
			decls[pos].Uses = append(decls[pos].Uses, target)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT type_position, name, visibility, is_abstract, is_static FROM method_slots WHERE snapshot_id = ? ORDER BY type_position, position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos        int
			m          hierarchy.MethodDecl
			visibility string
		)
		if err := rows.Scan(&pos, &m.Name, &visibility, &m.Abstract, &m.Static); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(decls) {
			return nil, fmt.Errorf("method for unknown type position %d", pos)
		}
		if m.Visibility, err = hierarchy.ParseVisibility(visibility); err != nil {
			return nil, err
		}
		decls[pos].Methods = append(decls[pos].Methods, m)
	}
	return decls, rows.Err()
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	if errors.IsCode(lastErr, errors.CodeNotFound) {
		return lastErr
	}
	return errors.Wrap(lastErr, errors.CodeInternal, op)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
