package assessment

import "time"

// ScoreCard is one labelled score with its tier
type ScoreCard struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Score int    `json:"score"`
	Tier  Tier   `json:"tier"`
}

// IntegrityBanner summarises the integrity analysis for display
type IntegrityBanner struct {
	Risk             RiskLevel `json:"risk"`
	Severity         string    `json:"severity"`
	Message          string    `json:"message"`
	OriginalityScore int       `json:"originalityScore"`
	PlagiarismScore  int       `json:"plagiarismScore"`
	AIDetectionScore int       `json:"aiDetectionScore"`
}

// View is what clients render for a story's assessment
type View struct {
	HasAssessment     bool             `json:"hasAssessment"`
	Version           Version          `json:"version,omitempty"`
	Overall           *ScoreCard       `json:"overall,omitempty"`
	Scores            []ScoreCard      `json:"scores"`
	Strengths         []string         `json:"strengths"`
	Improvements      []string         `json:"improvements"`
	Feedback          string           `json:"feedback,omitempty"`
	Integrity         *IntegrityBanner `json:"integrity,omitempty"`
	Recommendations   []string         `json:"recommendations"`
	AssessedAt        *time.Time       `json:"assessedAt,omitempty"`
	Attempts          int              `json:"attempts"`
	CanReassess       bool             `json:"canReassess"`
	AttemptsRemaining int              `json:"attemptsRemaining"`
}

// BuildView renders a, which may be nil, for a story assessed attempts times
func BuildView(a *Assessment, attempts int) View {
	remaining := MaxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	v := View{
		Scores:            []ScoreCard{},
		Strengths:         []string{},
		Improvements:      []string{},
		Recommendations:   []string{},
		Attempts:          attempts,
		CanReassess:       attempts < MaxAttempts,
		AttemptsRemaining: remaining,
	}
	if a == nil {
		return v
	}

	v.HasAssessment = true
	v.Version = a.Version
	v.Feedback = a.Feedback
	if len(a.Strengths) > 0 {
		v.Strengths = a.Strengths
	}
	if len(a.Improvements) > 0 {
		v.Improvements = a.Improvements
	}
	if !a.AssessedAt.IsZero() {
		assessedAt := a.AssessedAt
		v.AssessedAt = &assessedAt
	}

	overall := card("overall", "Overall", a.OverallScore())
	v.Overall = &overall

	switch {
	case a.Advanced != nil:
		c := a.Advanced.CategoryScores
		v.Scores = []ScoreCard{
			card("grammar", "Grammar", c.Grammar),
			card("vocabulary", "Vocabulary", c.Vocabulary),
			card("creativity", "Creativity", c.Creativity),
			card("structure", "Structure", c.Structure),
			card("characterDevelopment", "Character Development", c.CharacterDevelopment),
			card("plotDevelopment", "Plot Development", c.PlotDevelopment),
		}
		if len(a.Advanced.Recommendations) > 0 {
			v.Recommendations = a.Advanced.Recommendations
		}
		if in := a.Advanced.Integrity; in != nil {
			v.Integrity = banner(in)
		}
	case a.Legacy != nil:
		l := a.Legacy
		v.Scores = []ScoreCard{
			card("grammar", "Grammar", l.Grammar),
			card("creativity", "Creativity", l.Creativity),
		}
		optional := []struct {
			key, label string
			score      *int
		}{
			{"vocabulary", "Vocabulary", l.Vocabulary},
			{"structure", "Structure", l.Structure},
			{"characterDevelopment", "Character Development", l.CharacterDevelopment},
			{"plotDevelopment", "Plot Development", l.PlotDevelopment},
		}
		for _, o := range optional {
			if o.score != nil {
				v.Scores = append(v.Scores, card(o.key, o.label, *o.score))
			}
		}
	}

	return v
}

func card(key, label string, score int) ScoreCard {
	return ScoreCard{Key: key, Label: label, Score: score, Tier: ScoreToTier(score)}
}

func banner(in *IntegrityAnalysis) *IntegrityBanner {
	b := &IntegrityBanner{
		Risk:             in.Risk,
		OriginalityScore: in.OriginalityScore,
		PlagiarismScore:  in.PlagiarismScore,
		AIDetectionScore: in.AIDetectionScore,
	}
	switch in.Risk {
	case RiskLow:
		b.Severity = "info"
		b.Message = "This story looks like your own original work. Great job!"
	case RiskMedium:
		b.Severity = "warning"
		b.Message = "Some parts of this story may not be fully original. Try using more of your own words."
	case RiskHigh:
		b.Severity = "danger"
		b.Message = "Large parts of this story look copied or AI-written. A mentor may review it."
	case RiskCritical:
		b.Severity = "critical"
		b.Message = "This story does not appear to be original work and needs mentor review."
	}
	return b
}
