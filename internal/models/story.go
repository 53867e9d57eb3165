package models

import (
	"errors"
	"fmt"
	"time"

	"mintoons/internal/assessment"
)

// MaxTurns is the fixed length of a collaborative story
const MaxTurns = 7

// StoryStatus is the lifecycle state of a story session
type StoryStatus string

const (
	StatusActive    StoryStatus = "active"
	StatusCompleted StoryStatus = "completed"
	StatusPaused    StoryStatus = "paused"
	StatusFlagged   StoryStatus = "flagged"
)

// ErrInvalidTransition is returned for a status move the state machine forbids
var ErrInvalidTransition = errors.New("invalid story status transition")

// TransitionActor is who asks for a status change
type TransitionActor int

const (
	ActorOwner TransitionActor = iota
	ActorSystem
	ActorAdmin
)

type transition struct {
	from, to StoryStatus
}

// storyTransitions lists every legal move and who may make it
var storyTransitions = map[transition][]TransitionActor{
	{StatusActive, StatusCompleted}:  {ActorOwner},
	{StatusActive, StatusPaused}:     {ActorOwner},
	{StatusPaused, StatusActive}:     {ActorOwner},
	{StatusActive, StatusFlagged}:    {ActorSystem, ActorAdmin},
	{StatusPaused, StatusFlagged}:    {ActorSystem, ActorAdmin},
	{StatusCompleted, StatusFlagged}: {ActorSystem, ActorAdmin},
	{StatusFlagged, StatusActive}:    {ActorAdmin},
	{StatusFlagged, StatusCompleted}: {ActorAdmin},
}

// Valid reports whether s is a known status
func (s StoryStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusPaused, StatusFlagged:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal move for anyone
func CanTransition(from, to StoryStatus) bool {
	_, ok := storyTransitions[transition{from, to}]
	return ok
}

// CheckTransition validates from → to for actor
func CheckTransition(from, to StoryStatus, actor TransitionActor) error {
	actors, ok := storyTransitions[transition{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	for _, a := range actors {
		if a == actor {
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s not allowed for this user", ErrInvalidTransition, from, to)
}

// StoryElements are the child's chosen building blocks for a story
type StoryElements struct {
	Genre     string `json:"genre"`
	Character string `json:"character"`
	Setting   string `json:"setting"`
	Theme     string `json:"theme"`
	Mood      string `json:"mood"`
	Tone      string `json:"tone"`
}

// StorySession is one child's story attempt
type StorySession struct {
	ID                      int64                  `json:"id"`
	ChildID                 int64                  `json:"childId"`
	StoryNumber             int                    `json:"storyNumber"`
	Title                   string                 `json:"title"`
	Elements                StoryElements          `json:"elements"`
	Status                  StoryStatus            `json:"status"`
	TotalWords              int                    `json:"totalWords"`
	ChildWords              int                    `json:"childWords"`
	APICallsUsed            int                    `json:"apiCallsUsed"`
	MaxAPICalls             int                    `json:"maxApiCalls"`
	Assessment              *assessment.Assessment `json:"-"`
	AssessmentAttempts      int                    `json:"assessmentAttempts"`
	IsPublished             bool                   `json:"isPublished"`
	PublishedAt             *time.Time             `json:"publishedAt,omitempty"`
	CompetitionID           *int64                 `json:"competitionId,omitempty"`
	CompetitionSubmissionID *int64                 `json:"competitionSubmissionId,omitempty"`
	CompletedAt             *time.Time             `json:"completedAt,omitempty"`
	CreatedAt               time.Time              `json:"createdAt"`
	UpdatedAt               time.Time              `json:"updatedAt"`
}

// IsOwnedBy reports whether userID wrote the story
func (s *StorySession) IsOwnedBy(userID int64) bool {
	return s.ChildID == userID
}

// Turn is one child-input/AI-response exchange
type Turn struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"sessionId"`
	TurnNumber     int       `json:"turnNumber"`
	ChildInput     string    `json:"childInput"`
	AIResponse     string    `json:"aiResponse"`
	ChildWordCount int       `json:"childWordCount"`
	AIWordCount    int       `json:"aiWordCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// StoryDetail is a session with its turns and rendered assessment
type StoryDetail struct {
	Session    *StorySession   `json:"session"`
	Turns      []Turn          `json:"turns"`
	Assessment assessment.View `json:"assessment"`
}

// PublishedStory is the snapshot of a session taken at publish time
type PublishedStory struct {
	ID              int64         `json:"id"`
	SessionID       int64         `json:"sessionId"`
	ChildID         int64         `json:"childId"`
	AuthorPenName   string        `json:"authorPenName"`
	Title           string        `json:"title"`
	Content         string        `json:"content"`
	Elements        StoryElements `json:"elements"`
	WordCount       int           `json:"wordCount"`
	OverallScore    *int          `json:"overallScore,omitempty"`
	GrammarScore    *int          `json:"grammarScore,omitempty"`
	CreativityScore *int          `json:"creativityScore,omitempty"`
	PublishedAt     time.Time     `json:"publishedAt"`
}
