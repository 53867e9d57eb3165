package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mintoons/internal/models"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid name",
			input:   "John Doe",
			wantErr: false,
		},
		{
			name:    "single name",
			input:   "John",
			wantErr: false,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: true,
		},
		{
			name:    "name too short",
			input:   "J",
			wantErr: true,
		},
		{
			name:    "name with hyphen",
			input:   "Mary-Jane",
			wantErr: false,
		},
		{
			name:    "name with apostrophe",
			input:   "O'Brien",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "password123",
			wantErr:  false,
		},
		{
			name:     "password exactly 8 characters",
			password: "pass1234",
			wantErr:  false,
		},
		{
			name:     "password too short",
			password: "pass123",
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "long password",
			password: "thisIsAVeryLongPasswordThatShouldBeValid123",
			wantErr:  false,
		},
		{
			name:     "longer than bcrypt accepts",
			password: strings.Repeat("a", 73),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStoryTitle(t *testing.T) {
	assert.NoError(t, ValidateStoryTitle("The Dragon Who Loved Pancakes"))
	assert.Error(t, ValidateStoryTitle("   "))
	assert.Error(t, ValidateStoryTitle(strings.Repeat("x", 101)))

	var vErr *models.ValidationError
	assert.True(t, errors.As(ValidateStoryTitle(""), &vErr))
	assert.Equal(t, "title", vErr.Field)
}

func TestValidateTurnInput(t *testing.T) {
	assert.NoError(t, ValidateTurnInput("Once upon a time"))
	assert.Error(t, ValidateTurnInput(" ... "))
	assert.Error(t, ValidateTurnInput(strings.Repeat("a ", 1001)))
}

func TestValidateCommentContent(t *testing.T) {
	assert.NoError(t, ValidateCommentContent("Lovely use of dialogue!"))
	assert.Error(t, ValidateCommentContent(""))
	assert.NoError(t, ValidateCommentContent(strings.Repeat("a", 2000)))
	assert.Error(t, ValidateCommentContent(strings.Repeat("a", 2001)))
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"Once upon a time", 4},
		{"The dragon's cave wasn't dark.", 5},
		{"A well-known knight -- brave!", 4},
		{"Line one\nline two", 4},
		{"7 dwarfs", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CountWords(tt.text), "CountWords(%q)", tt.text)
	}
}
