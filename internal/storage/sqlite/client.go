package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/storage/models"
	"github.com/policy-navigator/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source_type TEXT NOT NULL,
		effective_date TEXT,
		jurisdiction TEXT,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source_type ON documents(source_type);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		intents TEXT,
		answer_text TEXT,
		confidence REAL,
		degraded INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS query_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		source_id TEXT NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_query ON query_sources(query_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_query ON feedback(query_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, title, source_type, effective_date, jurisdiction, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Title,
		doc.SourceType,
		doc.EffectiveDate,
		doc.Jurisdiction,
		doc.Text,
		doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (c *Client) ListDocuments() ([]*models.Document, error) {
	rows, err := c.db.Query(`
		SELECT id, title, source_type, effective_date, jurisdiction, text, created_at
		FROM documents ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var createdAt int64
		err := rows.Scan(&doc.ID, &doc.Title, &doc.SourceType, &doc.EffectiveDate, &doc.Jurisdiction, &doc.Text, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.CreatedAt = time.Unix(createdAt, 0)
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, query_text, intents, answer_text, confidence, degraded, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	degraded := 0
	if record.Degraded {
		degraded = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.QueryText,
		strings.Join(record.Intents, ","),
		record.AnswerText,
		record.Confidence,
		degraded,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	return nil
}

func (c *Client) InsertQuerySource(source *models.QuerySource) error {
	query := `
		INSERT INTO query_sources (query_id, tool, source_id)
		VALUES (?, ?, ?)
	`

	_, err := c.db.Exec(query, source.QueryID, source.Tool, source.SourceID)
	if err != nil {
		return fmt.Errorf("failed to insert query source: %w", err)
	}

	return nil
}

func (c *Client) RecentQueries(limit int) ([]*models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.Query(`
		SELECT id, query_text, intents, answer_text, confidence, degraded, latency_ms, created_at
		FROM query_history ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*models.QueryRecord
	for rows.Next() {
		var record models.QueryRecord
		var intents string
		var degraded int
		var createdAt int64
		err := rows.Scan(&record.ID, &record.QueryText, &intents, &record.AnswerText, &record.Confidence, &degraded, &record.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		if intents != "" {
			record.Intents = strings.Split(intents, ",")
		}
		record.Degraded = degraded == 1
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (c *Client) InsertFeedback(fb *models.Feedback) error {
	helpful := 0
	if fb.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(`
		INSERT INTO feedback (query_id, helpful, comment, created_at)
		VALUES (?, ?, ?, ?)
	`, fb.QueryID, helpful, fb.Comment, fb.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	return nil
}
