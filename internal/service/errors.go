package service

import (
	"errors"
	"strings"

	"mintoons/internal/models"
)

// Business-rule errors. Their messages are shown to users as-is.
var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("this account has been disabled")
	ErrRegistrationClosed = errors.New("registration is currently closed")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrResetTokenUsed     = errors.New("this reset link has already been used")
	ErrResetTokenExpired  = errors.New("this reset link has expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrCannotDeleteSelf   = errors.New("you cannot delete your own account")
	ErrForbidden          = errors.New("you do not have access to this story")

	ErrStoryNotFound          = errors.New("story not found")
	ErrStoryNotActive         = errors.New("story is not active")
	ErrStoryQuotaReached      = errors.New("monthly story limit reached")
	ErrTurnLimitReached       = errors.New("this story already has all 7 turns")
	ErrTurnConflict           = errors.New("another turn was saved at the same time, please reload")
	ErrAPICallLimitReached    = errors.New("AI helper limit reached for this story")
	ErrInappropriateContent   = errors.New("that text contains words that are not allowed, so the story has been sent for review")
	ErrNoTurns                = errors.New("a story needs at least one turn before it can be completed")
	ErrNotCompleted           = errors.New("only completed stories can be assessed")
	ErrAssessmentLimitReached = errors.New("assessment limit reached")
	ErrAssessmentDisabled     = errors.New("assessments are currently disabled")
	ErrAssessmentFailed       = errors.New("the assessment service is unavailable, please try again later")
	ErrAIUnavailable          = errors.New("the story helper is unavailable, please try again later")

	ErrOnlyCompletedPublish = errors.New("only completed stories can be published")
	ErrAlreadyPublished     = errors.New("story is already published")
	ErrNotPublished         = errors.New("only published stories can be purchased")
	ErrPaymentsUnavailable  = errors.New("payments are currently unavailable")

	ErrAlreadySubmitted    = errors.New("already submitted this title")
	ErrEntryLimitReached   = errors.New("limit reached")
	ErrStoryNotEligible    = errors.New("story not eligible")
	ErrCompetitionClosed   = errors.New("competition is not accepting submissions")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrCompetitionExists   = errors.New("a competition already exists for this month")
	ErrResultsNotAllowed   = errors.New("results can only be recorded while the competition is being judged")
)

// IneligibleError lists why a story can't be entered into a competition.
// It matches ErrStoryNotEligible with errors.Is.
type IneligibleError struct {
	Reasons []string
}

func (e *IneligibleError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrStoryNotEligible.Error()
	}
	return ErrStoryNotEligible.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *IneligibleError) Unwrap() error {
	return ErrStoryNotEligible
}

// Viewer is the authenticated caller of a service operation
type Viewer struct {
	UserID int64
	Role   models.Role
}

// CanReview reports whether the viewer may read other users' stories
func (v Viewer) CanReview() bool {
	return v.Role == models.RoleMentor || v.Role == models.RoleAdmin
}

// IsAdmin reports whether the viewer is an admin
func (v Viewer) IsAdmin() bool {
	return v.Role == models.RoleAdmin
}

func invalidInput(field, message string) error {
	return &models.ValidationError{Field: field, Message: message}
}
