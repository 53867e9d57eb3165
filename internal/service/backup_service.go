package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/cache"
	"mintoons/internal/database"
)

const backupVersion = "2.0"

type columnKind int

const (
	kindInt columnKind = iota
	kindText
	kindBool
	kindTime
)

type backupColumn struct {
	name string
	kind columnKind
}

// backupTable describes one table in the dump. serial tables have an
// integer id whose sequence is reset after import.
type backupTable struct {
	name    string
	columns []backupColumn
	orderBy string
	serial  bool
}

func cols(kind columnKind, names ...string) []backupColumn {
	out := make([]backupColumn, len(names))
	for i, n := range names {
		out[i] = backupColumn{name: n, kind: kind}
	}
	return out
}

func join(groups ...[]backupColumn) []backupColumn {
	var out []backupColumn
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// backupTables is in foreign key order; import walks it forwards and
// clearing walks it backwards
var backupTables = []backupTable{
	{
		name: "users",
		columns: join(
			cols(kindInt, "id"),
			cols(kindText, "email", "password_hash", "name", "pen_name", "role", "subscription_tier", "subscription_status"),
			cols(kindBool, "is_active"),
			cols(kindInt, "total_stories", "total_words", "stories_this_month"),
			cols(kindBool, "email_competition_updates", "email_quota_reset"),
			cols(kindTime, "created_at", "updated_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "password_reset_tokens",
		columns: join(
			cols(kindText, "token"),
			cols(kindInt, "user_id"),
			cols(kindTime, "expires_at"),
			cols(kindBool, "used"),
			cols(kindTime, "created_at"),
		),
		orderBy: "token",
	},
	{
		name: "competitions",
		columns: join(
			cols(kindInt, "id"),
			cols(kindText, "month", "title", "theme", "phase"),
			cols(kindTime, "submission_start", "submission_end", "judging_end"),
			cols(kindInt, "total_submissions", "total_participants"),
			cols(kindBool, "is_active"),
			cols(kindTime, "created_at", "updated_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "story_sessions",
		columns: join(
			cols(kindInt, "id", "child_id", "story_number"),
			cols(kindText, "title", "genre", "character_name", "setting", "theme", "mood", "tone", "status"),
			cols(kindInt, "total_words", "child_words", "api_calls_used", "max_api_calls"),
			cols(kindText, "assessment"),
			cols(kindInt, "assessment_attempts"),
			cols(kindBool, "is_published"),
			cols(kindTime, "published_at"),
			cols(kindInt, "competition_id", "competition_submission_id"),
			cols(kindTime, "completed_at", "created_at", "updated_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "turns",
		columns: join(
			cols(kindInt, "id", "session_id", "turn_number"),
			cols(kindText, "child_input", "ai_response"),
			cols(kindInt, "child_word_count", "ai_word_count"),
			cols(kindTime, "created_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "published_stories",
		columns: join(
			cols(kindInt, "id", "session_id", "child_id"),
			cols(kindText, "author_pen_name", "title", "content", "elements"),
			cols(kindInt, "word_count", "overall_score", "grammar_score", "creativity_score"),
			cols(kindTime, "published_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "competition_submissions",
		columns: join(
			cols(kindInt, "id", "user_id", "competition_id", "session_id"),
			cols(kindText, "title", "content"),
			cols(kindInt, "word_count"),
			cols(kindText, "pen_name", "status"),
			cols(kindInt, "competition_rank", "competition_score"),
			cols(kindBool, "is_published"),
			cols(kindText, "payment_status"),
			cols(kindTime, "submitted_at", "judged_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "story_comments",
		columns: join(
			cols(kindInt, "id", "session_id", "author_id"),
			cols(kindText, "comment_type", "content"),
			cols(kindTime, "created_at"),
		),
		orderBy: "id",
		serial:  true,
	},
	{
		name: "settings",
		columns: join(
			cols(kindText, "setting_key", "setting_value"),
			cols(kindTime, "updated_at"),
		),
		orderBy: "setting_key",
	},
	{
		name:    "bad_words",
		columns: join(cols(kindInt, "id"), cols(kindText, "word")),
		orderBy: "id",
		serial:  true,
	},
}

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string                              `json:"version"`
	ExportedAt   time.Time                           `json:"exported_at"`
	DatabaseType string                              `json:"database_type"`
	Tables       map[string][]map[string]interface{} `json:"tables"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	cache  cache.CompetitionCache
	logger *zap.Logger
}

// NewBackupService creates a new backup service. The competition cache is
// dropped after every import.
func NewBackupService(db *database.DB, competitionCache cache.CompetitionCache, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if competitionCache == nil {
		competitionCache = cache.Noop{}
	}
	return &BackupService{db: db, cache: competitionCache, logger: logger.Named("BackupService")}
}

// ExportToFile writes a complete backup of the database to outputPath
func (s *BackupService) ExportToFile(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.Export(ctx, file); err != nil {
		return err
	}
	s.logger.Info("Database exported", zap.String("path", outputPath))
	return nil
}

// Export writes a complete backup of the database as indented JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.GetDialect().DriverName(),
		Tables:       map[string][]map[string]interface{}{},
	}

	for _, table := range backupTables {
		rows, err := s.exportTable(ctx, table)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", table.name, err)
		}
		backup.Tables[table.name] = rows
		s.logger.Debug("Exported table", zap.String("table", table.name), zap.Int("rows", len(rows)))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

func (s *BackupService) exportTable(ctx context.Context, table backupTable) ([]map[string]interface{}, error) {
	names := make([]string, len(table.columns))
	for i, c := range table.columns {
		names[i] = c.name
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(names, ", "), table.name, table.orderBy)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []map[string]interface{}{}
	for rows.Next() {
		targets := make([]interface{}, len(table.columns))
		for i, c := range table.columns {
			targets[i] = scanTarget(c.kind)
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		record := make(map[string]interface{}, len(table.columns))
		for i, c := range table.columns {
			record[c.name] = exportValue(targets[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanTarget(kind columnKind) interface{} {
	switch kind {
	case kindInt:
		return &sql.NullInt64{}
	case kindBool:
		return &sql.NullBool{}
	case kindTime:
		return &sql.NullTime{}
	}
	return &sql.NullString{}
}

func exportValue(target interface{}) interface{} {
	switch v := target.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullTime:
		if v.Valid {
			return v.Time.UTC()
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}

// ImportFile restores a database from a backup file
func (s *BackupService) ImportFile(ctx context.Context, inputPath string, clear bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file, clear)
}

// Import restores a backup in one transaction. With clear set every table
// is emptied first.
func (s *BackupService) Import(ctx context.Context, r io.Reader, clear bool) error {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var backup BackupData
	if err := decoder.Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.logger.Info("Importing backup",
		zap.String("version", backup.Version),
		zap.Time("exportedAt", backup.ExportedAt),
		zap.String("source", backup.DatabaseType))

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if clear {
			for i := len(backupTables) - 1; i >= 0; i-- {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+backupTables[i].name); err != nil {
					return fmt.Errorf("failed to clear %s: %w", backupTables[i].name, err)
				}
			}
		}
		for _, table := range backupTables {
			records := backup.Tables[table.name]
			if err := importTable(ctx, tx, table, records); err != nil {
				return fmt.Errorf("failed to import %s: %w", table.name, err)
			}
			s.logger.Debug("Imported table", zap.String("table", table.name), zap.Int("rows", len(records)))
		}
		return resetSequences(ctx, tx)
	})
	if err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Competition cache invalidation failed", zap.Error(err))
	}
	s.logger.Info("Database import completed")
	return nil
}

func importTable(ctx context.Context, tx *database.Tx, table backupTable, records []map[string]interface{}) error {
	names := make([]string, len(table.columns))
	placeholders := make([]string, len(table.columns))
	for i, c := range table.columns {
		names[i] = c.name
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.name, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	for n, record := range records {
		args := make([]interface{}, len(table.columns))
		for i, c := range table.columns {
			v, err := importValue(c.kind, record[c.name])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", n, c.name, err)
			}
			args[i] = v
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
	}
	return nil
}

// importValue converts a decoded JSON value back to a driver value
func importValue(kind columnKind, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case kindInt:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", raw)
		}
		return n.Int64()
	case kindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean, got %T", raw)
		}
		return b, nil
	case kindTime:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected a timestamp, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected a string, got %T", raw)
	}
	return str, nil
}

// resetSequences moves Postgres serial sequences past the imported ids.
// SQLite and MySQL track this themselves.
func resetSequences(ctx context.Context, tx *database.Tx) error {
	if tx.GetDialect().DriverName() != "postgres" {
		return nil
	}
	for _, table := range backupTables {
		if !table.serial {
			continue
		}
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
			table.name, table.name)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to reset sequence for %s: %w", table.name, err)
		}
	}
	return nil
}
