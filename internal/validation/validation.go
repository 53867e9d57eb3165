// Package validation checks user input before it reaches the services.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"mintoons/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	MaxTitleLength     = 100
	MaxTurnInputLength = 2000
	MaxCommentLength   = 2000
	MinPasswordLength  = 8
	MaxPasswordLength  = 72 // bcrypt ignores the rest
	MinTurnInputWords  = 1
)

func invalid(field, message string) error {
	return &models.ValidationError{Field: field, Message: message}
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return invalid("email", "invalid email format")
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password", "password is required")
	}
	if len(password) < MinPasswordLength {
		return invalid("password", "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return invalid("password", "password must be at most 72 bytes")
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "name is required")
	}
	if utf8.RuneCountInString(name) < 2 {
		return invalid("name", "name must be at least 2 characters")
	}
	if utf8.RuneCountInString(name) > 100 {
		return invalid("name", "name must be at most 100 characters")
	}
	return nil
}

// ValidateStoryTitle checks a story title
func ValidateStoryTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return invalid("title", "title must be at most 100 characters")
	}
	return nil
}

// ValidateTurnInput checks a child's contribution to a turn
func ValidateTurnInput(input string) error {
	input = strings.TrimSpace(input)
	if CountWords(input) < MinTurnInputWords {
		return invalid("childInput", "write at least one word")
	}
	if utf8.RuneCountInString(input) > MaxTurnInputLength {
		return invalid("childInput", "turn must be at most 2000 characters")
	}
	return nil
}

// ValidateCommentContent checks comment length
func ValidateCommentContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return invalid("content", "comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return invalid("content", "comment must be at most 2000 characters")
	}
	return nil
}

// CountWords counts runs of letters or digits. "don't" and "well-known"
// count as one word each.
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || ((r == '\'' || r == '-' || r == '’') && inWord) {
			if !inWord {
				count++
				inWord = true
			}
			continue
		}
		inWord = false
	}
	return count
}
