package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"futures-exec/internal/config"
)

// Journal 以追加方式记录策略生命周期事件。只作审计与排查用，
// 进程重启后不读取历史事件恢复任何状态。
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Event 为一条已落库的执行事件。
type Event struct {
	ID         int64
	OccurredAt time.Time
	Strategy   string
	EventType  string
	Message    string
	Details    string
}

// Open 打开（或创建）SQLite 事件库并初始化表结构。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	j := &Journal{db: conn, logger: logger}
	if err := j.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS execution_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			strategy TEXT NOT NULL,
			event_type TEXT NOT NULL,
			message TEXT NOT NULL,
			details TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_events_strategy ON execution_events(strategy);`,
	}

	for _, stmt := range schema {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("journal: 初始化表结构失败: %w", err)
		}
	}

	return nil
}

// Record 写入一条事件。写入失败只记日志，绝不影响策略执行路径。
func (j *Journal) Record(ctx context.Context, strategy, event, message string, details map[string]interface{}) {
	payload := ""
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			j.logger.Warn("序列化事件详情失败", zap.Error(err))
		} else {
			payload = string(raw)
		}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO execution_events (occurred_at, strategy, event_type, message, details)
		 VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), strategy, event, message, payload,
	)
	if err != nil {
		j.logger.Warn("写入执行事件失败",
			zap.String("strategy", strategy),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// Recent 按时间倒序返回最近的事件，测试与排查用。
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, occurred_at, strategy, event_type, message, COALESCE(details, '')
		 FROM execution_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			event Event
			ts    string
		)
		if err := rows.Scan(&event.ID, &ts, &event.Strategy, &event.EventType, &event.Message, &event.Details); err != nil {
			return nil, fmt.Errorf("journal: 扫描事件失败: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			event.OccurredAt = parsed
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 遍历事件失败: %w", err)
	}

	return events, nil
}

// Close 关闭数据库连接。
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}
