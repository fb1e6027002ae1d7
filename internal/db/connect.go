package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:examhall.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/examhall?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  year TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  starts_at INTEGER NOT NULL,
  ends_at INTEGER NOT NULL,
  years_json TEXT NOT NULL DEFAULT '[]',
  sections_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'draft',
  total_points REAL NOT NULL DEFAULT 0,
  tos_json TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_teachers (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  teacher_id TEXT NOT NULL,
  PRIMARY KEY (exam_id, teacher_id)
);

CREATE TABLE IF NOT EXISTS exam_items (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  topic TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  level TEXT NOT NULL DEFAULT '',
  question TEXT NOT NULL,
  points INTEGER NOT NULL DEFAULT 1,
  expected_answer TEXT NOT NULL DEFAULT '',
  options_json TEXT,
  pairs_json TEXT,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS taken_exams (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  started_at INTEGER NOT NULL,
  submitted_at INTEGER,
  total_points REAL NOT NULL DEFAULT 0,
  UNIQUE (exam_id, user_id)
);

CREATE TABLE IF NOT EXISTS taken_exam_answers (
  id TEXT PRIMARY KEY,
  taken_exam_id TEXT NOT NULL REFERENCES taken_exams(id) ON DELETE CASCADE,
  exam_item_id TEXT NOT NULL REFERENCES exam_items(id) ON DELETE CASCADE,
  answer_json TEXT NOT NULL,
  points_earned REAL,
  feedback TEXT NOT NULL DEFAULT '',
  UNIQUE (taken_exam_id, exam_item_id)
);

CREATE TABLE IF NOT EXISTS exam_activity_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  taken_exam_id TEXT NOT NULL REFERENCES taken_exams(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  details_json TEXT NOT NULL DEFAULT '{}',
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exams_status_window ON exams(status, starts_at, ends_at);
CREATE INDEX IF NOT EXISTS idx_taken_exams_exam ON taken_exams(exam_id);
CREATE INDEX IF NOT EXISTS idx_activity_taken ON exam_activity_logs(taken_exam_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  year TEXT NOT NULL DEFAULT '',
  section TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  starts_at BIGINT NOT NULL,
  ends_at BIGINT NOT NULL,
  years_json TEXT NOT NULL DEFAULT '[]',
  sections_json TEXT NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'draft',
  total_points DOUBLE PRECISION NOT NULL DEFAULT 0,
  tos_json TEXT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_teachers (
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  teacher_id TEXT NOT NULL,
  PRIMARY KEY (exam_id, teacher_id)
);

CREATE TABLE IF NOT EXISTS exam_items (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  topic TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  level TEXT NOT NULL DEFAULT '',
  question TEXT NOT NULL,
  points INTEGER NOT NULL DEFAULT 1,
  expected_answer TEXT NOT NULL DEFAULT '',
  options_json TEXT,
  pairs_json TEXT,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS taken_exams (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  started_at BIGINT NOT NULL,
  submitted_at BIGINT,
  total_points DOUBLE PRECISION NOT NULL DEFAULT 0,
  UNIQUE (exam_id, user_id)
);

CREATE TABLE IF NOT EXISTS taken_exam_answers (
  id TEXT PRIMARY KEY,
  taken_exam_id TEXT NOT NULL REFERENCES taken_exams(id) ON DELETE CASCADE,
  exam_item_id TEXT NOT NULL REFERENCES exam_items(id) ON DELETE CASCADE,
  answer_json TEXT NOT NULL,
  points_earned DOUBLE PRECISION,
  feedback TEXT NOT NULL DEFAULT '',
  UNIQUE (taken_exam_id, exam_item_id)
);

CREATE TABLE IF NOT EXISTS exam_activity_logs (
  id BIGSERIAL PRIMARY KEY,
  taken_exam_id TEXT NOT NULL REFERENCES taken_exams(id) ON DELETE CASCADE,
  student_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  details_json TEXT NOT NULL DEFAULT '{}',
  created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exams_status_window ON exams(status, starts_at, ends_at);
CREATE INDEX IF NOT EXISTS idx_taken_exams_exam ON taken_exams(exam_id);
CREATE INDEX IF NOT EXISTS idx_activity_taken ON exam_activity_logs(taken_exam_id);
`
