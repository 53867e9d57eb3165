package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// CompetitionPhase is the stage of a monthly competition
type CompetitionPhase string

const (
	PhaseSubmission CompetitionPhase = "submission"
	PhaseJudging    CompetitionPhase = "judging"
	PhaseResults    CompetitionPhase = "results"
)

// ErrInvalidPhaseTransition is returned when a phase would move backwards or skip
var ErrInvalidPhaseTransition = errors.New("invalid competition phase transition")

// Next returns the phase after p. Phases only move forward.
func (p CompetitionPhase) Next() (CompetitionPhase, error) {
	switch p {
	case PhaseSubmission:
		return PhaseJudging, nil
	case PhaseJudging:
		return PhaseResults, nil
	case PhaseResults:
		return "", fmt.Errorf("%w: %s is final", ErrInvalidPhaseTransition, p)
	}
	return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidPhaseTransition, p)
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonth validates a YYYY-MM string and returns the first instant of
// that month in UTC
func ParseMonth(month string) (time.Time, error) {
	if !monthPattern.MatchString(month) {
		return time.Time{}, &ValidationError{Field: "month", Message: "month must be in YYYY-MM format"}
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "month", Message: "month must be in YYYY-MM format"}
	}
	return t.UTC(), nil
}

// Competition is one month's writing contest
type Competition struct {
	ID                int64            `json:"id"`
	Month             string           `json:"month"`
	Title             string           `json:"title"`
	Theme             string           `json:"theme"`
	Phase             CompetitionPhase `json:"phase"`
	SubmissionStart   time.Time        `json:"submissionStart"`
	SubmissionEnd     time.Time        `json:"submissionEnd"`
	JudgingEnd        time.Time        `json:"judgingEnd"`
	TotalSubmissions  int              `json:"totalSubmissions"`
	TotalParticipants int              `json:"totalParticipants"`
	IsActive          bool             `json:"isActive"`
	Winners           []Winner         `json:"winners,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// AcceptsSubmissions reports whether entries may be added now
func (c *Competition) AcceptsSubmissions() bool {
	return c.IsActive && c.Phase == PhaseSubmission
}

// Winner is a podium place in a finished competition
type Winner struct {
	Rank         int    `json:"rank"`
	UserID       int64  `json:"userId"`
	PenName      string `json:"penName"`
	SubmissionID int64  `json:"submissionId"`
	Title        string `json:"title"`
	Score        *int   `json:"score,omitempty"`
}

// SubmissionStatus is the judging state of an entry
type SubmissionStatus string

const (
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionUnderReview  SubmissionStatus = "under_review"
	SubmissionJudged       SubmissionStatus = "judged"
	SubmissionWinner       SubmissionStatus = "winner"
	SubmissionDisqualified SubmissionStatus = "disqualified"
)

// Valid reports whether s is a known submission status
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionUnderReview, SubmissionJudged, SubmissionWinner, SubmissionDisqualified:
		return true
	}
	return false
}

// CompetitionSubmission is a story entered into a competition
type CompetitionSubmission struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"userId"`
	CompetitionID    int64            `json:"competitionId"`
	SessionID        *int64           `json:"sessionId,omitempty"`
	Title            string           `json:"title"`
	Content          string           `json:"content,omitempty"`
	WordCount        int              `json:"wordCount"`
	PenName          string           `json:"penName"`
	Status           SubmissionStatus `json:"status"`
	CompetitionRank  *int             `json:"competitionRank,omitempty"`
	CompetitionScore *int             `json:"competitionScore,omitempty"`
	IsPublished      bool             `json:"isPublished"`
	PaymentStatus    string           `json:"paymentStatus"`
	SubmittedAt      time.Time        `json:"submittedAt"`
	JudgedAt         *time.Time       `json:"judgedAt,omitempty"`
}

// JudgingResult is one externally judged entry written back by an admin
type JudgingResult struct {
	SubmissionID int64            `json:"submissionId" yaml:"submissionId"`
	Rank         *int             `json:"rank,omitempty" yaml:"rank,omitempty"`
	Score        *int             `json:"score,omitempty" yaml:"score,omitempty"`
	Status       SubmissionStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// Validate checks ranges and the status enum
func (r JudgingResult) Validate() error {
	if r.SubmissionID <= 0 {
		return &ValidationError{Field: "submissionId", Message: "submissionId is required"}
	}
	if r.Rank != nil && *r.Rank < 1 {
		return &ValidationError{Field: "rank", Message: "rank must be at least 1"}
	}
	if r.Score != nil && (*r.Score < 0 || *r.Score > 100) {
		return &ValidationError{Field: "score", Message: "score must be between 0 and 100"}
	}
	if r.Status != "" && !r.Status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown submission status"}
	}
	return nil
}
