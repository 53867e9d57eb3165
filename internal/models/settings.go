package models

// SiteSettings is the admin-editable configuration document
type SiteSettings struct {
	SiteName               string `json:"siteName"`
	MaintenanceMode        bool   `json:"maintenanceMode"`
	AllowRegistration      bool   `json:"allowRegistration"`
	FreeStoriesPerMonth    int    `json:"freeStoriesPerMonth"`
	PremiumStoriesPerMonth int    `json:"premiumStoriesPerMonth"`
	MaxAPICallsPerStory    int    `json:"maxApiCallsPerStory"`
	MaxCompetitionEntries  int    `json:"maxCompetitionEntries"`
	MinWordCount           int    `json:"minWordCount"`
	MaxWordCount           int    `json:"maxWordCount"`
	AssessmentEnabled      bool   `json:"assessmentEnabled"`
}

// DefaultSiteSettings is used until an admin saves settings
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		SiteName:               "Mintoons",
		AllowRegistration:      true,
		FreeStoriesPerMonth:    5,
		PremiumStoriesPerMonth: 50,
		MaxAPICallsPerStory:    10,
		MaxCompetitionEntries:  3,
		MinWordCount:           100,
		MaxWordCount:           2000,
		AssessmentEnabled:      true,
	}
}

// Validate checks the settings are usable
func (s SiteSettings) Validate() error {
	switch {
	case s.FreeStoriesPerMonth < 0 || s.PremiumStoriesPerMonth < 0:
		return &ValidationError{Field: "storiesPerMonth", Message: "story quotas cannot be negative"}
	case s.MaxAPICallsPerStory < MaxTurns:
		return &ValidationError{Field: "maxApiCallsPerStory", Message: "maxApiCallsPerStory must allow at least 7 turns"}
	case s.MaxCompetitionEntries < 1:
		return &ValidationError{Field: "maxCompetitionEntries", Message: "maxCompetitionEntries must be at least 1"}
	case s.MinWordCount < 0 || s.MaxWordCount < s.MinWordCount:
		return &ValidationError{Field: "wordCount", Message: "word count range is invalid"}
	}
	return nil
}

// StoryQuota returns the monthly story allowance for a tier
func (s SiteSettings) StoryQuota(tier SubscriptionTier) int {
	if tier == TierPremium {
		return s.PremiumStoriesPerMonth
	}
	return s.FreeStoriesPerMonth
}
