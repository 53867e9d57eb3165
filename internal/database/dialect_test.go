package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		name             string
		dialect          Dialect
		driver           string
		lastInsertID     bool
		migrationsSubdir string
	}{
		{"SQLite", NewSQLiteDialect(), "sqlite3", true, "sqlite"},
		{"PostgreSQL", NewPostgresDialect(), "postgres", false, "postgres"},
		{"MySQL", NewMySQLDialect(), "mysql", true, "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.driver, tt.dialect.DriverName())
			assert.Equal(t, tt.lastInsertID, tt.dialect.SupportsLastInsertId())
			assert.Equal(t, tt.migrationsSubdir, tt.dialect.MigrationsSubdir())
			assert.Contains(t, tt.dialect.UpsertSettingQuery(), "settings")
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO turns (session_id, turn_number) VALUES (?, ?)",
			expected: "INSERT INTO turns (session_id, turn_number) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.RewriteQuery(tt.query))
		})
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   DialectConfig
		expected string
	}{
		{
			name:     "SQLite adds pragmas",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "mintoons.db"},
			expected: "mintoons.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name:     "SQLite keeps explicit params",
			dialect:  NewSQLiteDialect(),
			config:   DialectConfig{Path: "file:test.db?mode=memory"},
			expected: "file:test.db?mode=memory",
		},
		{
			name:     "MySQL adds parseTime",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/mintoons"},
			expected: "user:pass@tcp(localhost:3306)/mintoons?parseTime=true",
		},
		{
			name:     "MySQL appends to existing query",
			dialect:  NewMySQLDialect(),
			config:   DialectConfig{URL: "user:pass@tcp(localhost:3306)/mintoons?charset=utf8mb4"},
			expected: "user:pass@tcp(localhost:3306)/mintoons?charset=utf8mb4&parseTime=true",
		},
		{
			name:     "PostgreSQL passthrough",
			dialect:  NewPostgresDialect(),
			config:   DialectConfig{URL: "postgres://localhost/mintoons?sslmode=disable"},
			expected: "postgres://localhost/mintoons?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.DSN(tt.config))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		err      error
		expected bool
	}{
		{"SQLite unique", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"SQLite primary key", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"SQLite foreign key", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, false},
		{"SQLite wrapped", NewSQLiteDialect(), fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), true},
		{"PostgreSQL unique", NewPostgresDialect(), &pq.Error{Code: "23505"}, true},
		{"PostgreSQL not null", NewPostgresDialect(), &pq.Error{Code: "23502"}, false},
		{"MySQL duplicate", NewMySQLDialect(), &mysql.MySQLError{Number: 1062}, true},
		{"MySQL other", NewMySQLDialect(), &mysql.MySQLError{Number: 1452}, false},
		{"plain error", NewSQLiteDialect(), errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.IsUniqueViolation(tt.err))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `
-- comment line
CREATE TABLE a (id INTEGER);

CREATE INDEX idx_a ON a(id);
`
	stmts := splitStatements(content)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx_a ON a(id)"}, stmts)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"the", "dragon's", "cave", "was", "dark"},
		tokenize("The dragon's cave... was DARK! the cave"))
	assert.Empty(t, tokenize("  ?!  "))
}
