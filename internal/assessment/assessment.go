// Package assessment holds the scored feedback attached to a completed story.
//
// Assessments arrive from the external scorer in one of two shapes: the flat
// legacy shape (grammarScore, creativityScore, ...) or the advanced shape
// (categoryScores, integrityAnalysis, recommendations). Decode turns either
// into an Assessment whose Version says which variant is populated; nothing
// else in the codebase inspects raw payloads.
package assessment

import (
	"errors"
	"fmt"
	"time"
)

// MaxAttempts is how many times a story may be assessed
const MaxAttempts = 3

// Version discriminates the assessment variants
type Version string

const (
	VersionLegacy   Version = "1.0"
	VersionAdvanced Version = "2.0"
)

// RiskLevel summarises originality and AI-detection concerns
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether r is a known risk level
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

var (
	ErrEmptyPayload   = errors.New("assessment payload has no scores")
	ErrInvalidVariant = errors.New("assessment must carry exactly one variant matching its version")
	ErrScoreRange     = errors.New("assessment score out of range")
	ErrInvalidRisk    = errors.New("invalid integrity risk level")
)

// LegacyScores is the flat score set of version 1.0 assessments
type LegacyScores struct {
	Grammar              int  `json:"grammar"`
	Creativity           int  `json:"creativity"`
	Vocabulary           *int `json:"vocabulary,omitempty"`
	Structure            *int `json:"structure,omitempty"`
	CharacterDevelopment *int `json:"characterDevelopment,omitempty"`
	PlotDevelopment      *int `json:"plotDevelopment,omitempty"`
	Overall              int  `json:"overall"`
}

// CategoryScores are the per-category scores of version 2.0 assessments
type CategoryScores struct {
	Grammar              int `json:"grammar"`
	Vocabulary           int `json:"vocabulary"`
	Creativity           int `json:"creativity"`
	Structure            int `json:"structure"`
	CharacterDevelopment int `json:"characterDevelopment"`
	PlotDevelopment      int `json:"plotDevelopment"`
	Overall              int `json:"overall"`
}

// IntegrityAnalysis reports originality and AI-detection sub-scores
type IntegrityAnalysis struct {
	OriginalityScore int       `json:"originalityScore"`
	PlagiarismScore  int       `json:"plagiarismScore"`
	AIDetectionScore int       `json:"aiDetectionScore"`
	Risk             RiskLevel `json:"integrityRisk"`
}

// AdvancedAssessment is the version 2.0 variant
type AdvancedAssessment struct {
	CategoryScores  CategoryScores     `json:"categoryScores"`
	Integrity       *IntegrityAnalysis `json:"integrityAnalysis,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	ReadingLevel    string             `json:"readingLevel,omitempty"`
}

// Assessment is a tagged union: Version says whether Legacy or Advanced is set
type Assessment struct {
	Version      Version             `json:"version"`
	Legacy       *LegacyScores       `json:"legacy,omitempty"`
	Advanced     *AdvancedAssessment `json:"advanced,omitempty"`
	Feedback     string              `json:"feedback"`
	Strengths    []string            `json:"strengths"`
	Improvements []string            `json:"improvements"`
	AssessedAt   time.Time           `json:"assessedAt"`
}

// OverallScore returns the top-level score of whichever variant is set
func (a *Assessment) OverallScore() int {
	switch {
	case a.Advanced != nil:
		return a.Advanced.CategoryScores.Overall
	case a.Legacy != nil:
		return a.Legacy.Overall
	}
	return 0
}

// GrammarScore returns the grammar score of whichever variant is set
func (a *Assessment) GrammarScore() int {
	switch {
	case a.Advanced != nil:
		return a.Advanced.CategoryScores.Grammar
	case a.Legacy != nil:
		return a.Legacy.Grammar
	}
	return 0
}

// CreativityScore returns the creativity score of whichever variant is set
func (a *Assessment) CreativityScore() int {
	switch {
	case a.Advanced != nil:
		return a.Advanced.CategoryScores.Creativity
	case a.Legacy != nil:
		return a.Legacy.Creativity
	}
	return 0
}

// Validate checks the union is well formed and every score is in [0,100]
func (a *Assessment) Validate() error {
	switch a.Version {
	case VersionLegacy:
		if a.Legacy == nil || a.Advanced != nil {
			return ErrInvalidVariant
		}
		l := a.Legacy
		if err := checkScores(map[string]int{
			"grammar":    l.Grammar,
			"creativity": l.Creativity,
			"overall":    l.Overall,
		}); err != nil {
			return err
		}
		optional := map[string]*int{
			"vocabulary":           l.Vocabulary,
			"structure":            l.Structure,
			"characterDevelopment": l.CharacterDevelopment,
			"plotDevelopment":      l.PlotDevelopment,
		}
		for name, score := range optional {
			if score != nil {
				if err := checkScore(name, *score); err != nil {
					return err
				}
			}
		}
	case VersionAdvanced:
		if a.Advanced == nil || a.Legacy != nil {
			return ErrInvalidVariant
		}
		c := a.Advanced.CategoryScores
		if err := checkScores(map[string]int{
			"grammar":              c.Grammar,
			"vocabulary":           c.Vocabulary,
			"creativity":           c.Creativity,
			"structure":            c.Structure,
			"characterDevelopment": c.CharacterDevelopment,
			"plotDevelopment":      c.PlotDevelopment,
			"overall":              c.Overall,
		}); err != nil {
			return err
		}
		if in := a.Advanced.Integrity; in != nil {
			if err := checkScores(map[string]int{
				"originalityScore": in.OriginalityScore,
				"plagiarismScore":  in.PlagiarismScore,
				"aiDetectionScore": in.AIDetectionScore,
			}); err != nil {
				return err
			}
			if !in.Risk.Valid() {
				return fmt.Errorf("%w: %q", ErrInvalidRisk, in.Risk)
			}
		}
	default:
		return fmt.Errorf("%w: unknown version %q", ErrInvalidVariant, a.Version)
	}
	return nil
}

func checkScores(scores map[string]int) error {
	for name, score := range scores {
		if err := checkScore(name, score); err != nil {
			return err
		}
	}
	return nil
}

func checkScore(name string, score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: %s=%d", ErrScoreRange, name, score)
	}
	return nil
}
