package resolve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Install records one published FFmpeg install in the cache.
type Install struct {
	ID          int64
	Target      Target
	Version     string
	Checksum    string
	InstallDir  string
	Binaries    []string
	InstalledAt time.Time
}

// FFmpegPath returns the install's ffmpeg binary, or "" if absent.
func (i *Install) FFmpegPath() string { return i.binary("ffmpeg") }

// FFprobePath returns the install's ffprobe binary, or "" if absent. Not
// every distribution ships ffprobe.
func (i *Install) FFprobePath() string { return i.binary("ffprobe") }

func (i *Install) binary(name string) string {
	if i == nil {
		return ""
	}
	for _, b := range i.Binaries {
		base := trimExe(b)
		if base == name {
			return b
		}
	}
	return ""
}

// Store persists the install manifest in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the manifest database and applies the
// schema.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS installs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    version TEXT NOT NULL,
    checksum TEXT NOT NULL,
    install_dir TEXT NOT NULL,
    binaries TEXT NOT NULL,
    installed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_installs_target ON installs(target);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Record inserts a completed install.
func (s *Store) Record(ctx context.Context, install *Install) error {
	binaries, err := json.Marshal(install.Binaries)
	if err != nil {
		return fmt.Errorf("encode binaries: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO installs (target, version, checksum, install_dir, binaries, installed_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		install.Target.Key(),
		install.Version,
		install.Checksum,
		install.InstallDir,
		string(binaries),
		install.InstalledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert install: %w", err)
	}
	install.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read insert id: %w", err)
	}
	return nil
}

// Latest returns the most recent install recorded for the target.
func (s *Store) Latest(ctx context.Context, target Target) (*Install, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, target, version, checksum, install_dir, binaries, installed_at
         FROM installs WHERE target = ? ORDER BY id DESC LIMIT 1`,
		target.Key(),
	)
	install, err := scanInstall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no install recorded for %s", ErrNotFound, target.Key())
	}
	return install, err
}

// List returns every recorded install, newest first.
func (s *Store) List(ctx context.Context) ([]*Install, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, target, version, checksum, install_dir, binaries, installed_at
         FROM installs ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list installs: %w", err)
	}
	defer rows.Close()

	var installs []*Install
	for rows.Next() {
		install, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		installs = append(installs, install)
	}
	return installs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstall(row rowScanner) (*Install, error) {
	var (
		install     Install
		targetKey   string
		binaries    string
		installedAt string
	)
	if err := row.Scan(&install.ID, &targetKey, &install.Version, &install.Checksum,
		&install.InstallDir, &binaries, &installedAt); err != nil {
		return nil, err
	}
	if osName, arch, ok := splitKey(targetKey); ok {
		install.Target = Target{OS: osName, Arch: arch}
	}
	if err := json.Unmarshal([]byte(binaries), &install.Binaries); err != nil {
		return nil, fmt.Errorf("decode binaries: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, installedAt); err == nil {
		install.InstalledAt = ts
	}
	return &install, nil
}

func splitKey(key string) (osName, arch string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '-' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}
