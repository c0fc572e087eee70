// Package cache persists last-known-good client state between sessions:
// usage counters, the selected prompt template and a snapshot of the
// conversation list. It is strictly a cache — read once at startup for an
// instant paint and overwritten after successful syncs, never consulted as
// a source of truth.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opencampus/assistant-cli/internal/domain"
)

// Cache is a SQLite-backed local state bucket.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache at the given path and runs migrations.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate
	// databases. Keep a single connection so the schema survives.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS stats (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			interactions_today INTEGER NOT NULL DEFAULT 0,
			total_interactions INTEGER NOT NULL DEFAULT 0,
			accuracy_pct REAL NOT NULL DEFAULT 0,
			study_minutes INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_snapshot (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			last_message TEXT NOT NULL DEFAULT '',
			timestamp DATETIME,
			starred INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			message_count INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, m := range migrations {
		if _, err := c.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const templateKey = "selected_template"

// SaveStats overwrites the persisted usage counters.
func (c *Cache) SaveStats(ctx context.Context, stats domain.AIStats) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO stats (id, interactions_today, total_interactions, accuracy_pct, study_minutes, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			interactions_today = excluded.interactions_today,
			total_interactions = excluded.total_interactions,
			accuracy_pct = excluded.accuracy_pct,
			study_minutes = excluded.study_minutes,
			updated_at = excluded.updated_at`,
		stats.InteractionsToday, stats.TotalInteractions, stats.AccuracyPct, stats.StudyMinutes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// LoadStats returns the persisted counters, or zero values when the cache
// is empty.
func (c *Cache) LoadStats(ctx context.Context) (domain.AIStats, error) {
	var stats domain.AIStats
	err := c.db.QueryRowContext(ctx, `
		SELECT interactions_today, total_interactions, accuracy_pct, study_minutes
		FROM stats WHERE id = 1`).
		Scan(&stats.InteractionsToday, &stats.TotalInteractions, &stats.AccuracyPct, &stats.StudyMinutes)
	if err == sql.ErrNoRows {
		return domain.AIStats{}, nil
	}
	if err != nil {
		return domain.AIStats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// SaveSelectedTemplate remembers the last-used prompt template id.
func (c *Cache) SaveSelectedTemplate(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		templateKey, id)
	if err != nil {
		return fmt.Errorf("failed to save template selection: %w", err)
	}
	return nil
}

// SelectedTemplate returns the last-used prompt template id, or "" when
// none was saved.
func (c *Cache) SelectedTemplate(ctx context.Context) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, templateKey).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load template selection: %w", err)
	}
	return value, nil
}

// SaveConversations replaces the conversation snapshot wholesale,
// preserving list order.
func (c *Cache) SaveConversations(ctx context.Context, conversations []domain.Conversation) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_snapshot`); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	for i, conv := range conversations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_snapshot
				(id, position, title, last_message, timestamp, starred, archived, message_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			conv.ID, i, conv.Title, conv.LastMessage, conv.Timestamp,
			conv.Starred, conv.Archived, conv.MessageCount)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
	}
	return tx.Commit()
}

// LoadConversations returns the persisted snapshot in its original order.
func (c *Cache) LoadConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, title, last_message, timestamp, starred, archived, message_count
		FROM conversation_snapshot ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var ts sql.NullTime
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.LastMessage, &ts,
			&conv.Starred, &conv.Archived, &conv.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if ts.Valid {
			conv.Timestamp = ts.Time
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
