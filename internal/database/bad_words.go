package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// DefaultBadWordsURL is the list used when no override is configured
const DefaultBadWordsURL = "https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/refs/heads/master/en"

// SeedBadWords downloads the bad words list and seeds it when the table is empty
func (db *DB) SeedBadWords(ctx context.Context, url string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = DefaultBadWordsURL
	}

	count, err := db.CountBadWords(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Bad words filter already populated", zap.Int("count", count))
		return nil
	}

	logger.Info("Downloading bad words list", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build bad words request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download bad words list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status code from bad words URL: %d", resp.StatusCode)
	}

	added, err := db.LoadBadWords(ctx, resp.Body)
	if err != nil {
		return err
	}

	logger.Info("Bad words filter populated", zap.Int("count", added))
	return nil
}

// LoadBadWords inserts one word per line from r, skipping blanks and words
// already present. It returns the number of words added.
func (db *DB) LoadBadWords(ctx context.Context, r io.Reader) (int, error) {
	existing := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT word FROM bad_words")
	if err != nil {
		return 0, fmt.Errorf("failed to read bad words: %w", err)
	}
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan bad word: %w", err)
		}
		existing[word] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read bad words: %w", err)
	}

	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if word == "" || existing[word] {
			continue
		}
		existing[word] = true
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading bad words: %w", err)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		for _, word := range words {
			if _, err := tx.ExecContext(ctx, "INSERT INTO bad_words (word) VALUES (?)", word); err != nil {
				return fmt.Errorf("failed to insert bad word: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(words), nil
}

// CountBadWords returns the size of the filter list
func (db *DB) CountBadWords(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to check bad words count: %w", err)
	}
	return count, nil
}

// ClearBadWords empties the filter list
func (db *DB) ClearBadWords(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM bad_words"); err != nil {
		return fmt.Errorf("failed to clear bad words: %w", err)
	}
	return nil
}

// IsBadWord checks if a single word is in the bad words list
func (db *DB) IsBadWord(ctx context.Context, word string) (bool, error) {
	found, err := db.ContainsBadWords(ctx, word)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// ContainsBadWords tokenises text and returns the distinct listed words it
// contains, in the order they first appear
func (db *DB) ContainsBadWords(ctx context.Context, text string) ([]string, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]interface{}, len(tokens))
	for i, token := range tokens {
		args[i] = token
	}

	rows, err := db.QueryContext(ctx, "SELECT word FROM bad_words WHERE word IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check bad words: %w", err)
	}
	defer rows.Close()

	listed := make(map[string]bool)
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, fmt.Errorf("failed to scan bad word: %w", err)
		}
		listed[word] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to check bad words: %w", err)
	}

	var found []string
	for _, token := range tokens {
		if listed[token] {
			found = append(found, token)
		}
	}
	return found, nil
}

// tokenize lowercases text and splits it into distinct words. Apostrophes
// stay inside a word so contractions match as written.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		tokens = append(tokens, field)
	}
	return tokens
}
