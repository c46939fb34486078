package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion 每次修改 migrations 时递增。
const schemaVersion = 1

var migrations = map[int]string{
	1: `
CREATE TABLE IF NOT EXISTS sessions (
	id                    TEXT PRIMARY KEY,
	started_at            TEXT NOT NULL,
	ended_at              TEXT,
	step_count            INTEGER NOT NULL DEFAULT 0,
	snapshot              TEXT,
	rating_supportive     INTEGER,
	rating_understandable INTEGER,
	rating_non_intrusive  INTEGER,
	evaluated_at          TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

CREATE TABLE IF NOT EXISTS interactions (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id       TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	step_number      INTEGER NOT NULL,
	state_before     TEXT    NOT NULL,
	state_after      TEXT    NOT NULL,
	trigger          TEXT    NOT NULL,
	inferred_intent  TEXT,
	speech_act       TEXT,
	response_text    TEXT,
	priority         TEXT,
	escalation_count INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT    NOT NULL,
	UNIQUE (session_id, step_number)
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, step_number);
`,
}

// Open 打开（或创建）SQLite 数据库并执行迁移。
// path 为 ":memory:" 时使用内存库，仅用于测试。
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 单连接：写入串行化，内存库也只会有一份。
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := version + 1; v <= schemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply v%d: %w", v, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("record v%d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit v%d: %w", v, err)
		}
	}
	return nil
}

// TimeLayout 是定宽的 UTC 时间格式，保证 TEXT 列的字典序与时间顺序一致。
// RFC3339Nano 会省略末尾的 0，长度不固定，不能用于排序。
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime 把时间格式化为可排序的 UTC 文本。
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime 解析 FormatTime 写入的时间，也兼容 RFC3339 的变长小数秒。
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
