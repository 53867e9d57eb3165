package assessment

// Tier is the display band for a score
type Tier struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// String returns "name/color", e.g. "great/blue"
func (t Tier) String() string {
	return t.Name + "/" + t.Color
}

var (
	TierExcellent        = Tier{Name: "excellent", Label: "Excellent", Color: "green", Emoji: "🌟"}
	TierGreat            = Tier{Name: "great", Label: "Great", Color: "blue", Emoji: "⭐"}
	TierGood             = Tier{Name: "good", Label: "Good", Color: "yellow", Emoji: "👍"}
	TierFair             = Tier{Name: "fair", Label: "Fair", Color: "orange", Emoji: "📈"}
	TierNeedsImprovement = Tier{Name: "needs-improvement", Label: "Needs Improvement", Color: "red", Emoji: "💪"}
)

// ScoreToTier maps a score to its display tier. It is total: anything below
// 60, negatives included, needs improvement.
func ScoreToTier(score int) Tier {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 80:
		return TierGreat
	case score >= 70:
		return TierGood
	case score >= 60:
		return TierFair
	default:
		return TierNeedsImprovement
	}
}
