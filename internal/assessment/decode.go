package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// payload is the scorer's response in either shape
type payload struct {
	AssessmentVersion string `json:"assessmentVersion"`

	GrammarScore              *float64 `json:"grammarScore"`
	CreativityScore           *float64 `json:"creativityScore"`
	VocabularyScore           *float64 `json:"vocabularyScore"`
	StructureScore            *float64 `json:"structureScore"`
	CharacterDevelopmentScore *float64 `json:"characterDevelopmentScore"`
	PlotDevelopmentScore      *float64 `json:"plotDevelopmentScore"`
	OverallScore              *float64 `json:"overallScore"`

	CategoryScores    *payloadCategories `json:"categoryScores"`
	IntegrityAnalysis *payloadIntegrity  `json:"integrityAnalysis"`
	Recommendations   json.RawMessage    `json:"recommendations"`
	ReadingLevel      string             `json:"readingLevel"`

	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type payloadCategories struct {
	Grammar              *float64 `json:"grammar"`
	Vocabulary           *float64 `json:"vocabulary"`
	Creativity           *float64 `json:"creativity"`
	Structure            *float64 `json:"structure"`
	CharacterDevelopment *float64 `json:"characterDevelopment"`
	PlotDevelopment      *float64 `json:"plotDevelopment"`
	Overall              *float64 `json:"overall"`
}

type payloadIntegrity struct {
	OriginalityScore *float64 `json:"originalityScore"`
	PlagiarismScore  *float64 `json:"plagiarismScore"`
	AIDetectionScore *float64 `json:"aiDetectionScore"`
	IntegrityRisk    string   `json:"integrityRisk"`
}

// Decode parses a scorer payload of either shape into an Assessment and
// validates it. assessmentVersion "2.0", categoryScores or integrityAnalysis
// select the advanced variant; anything else is read as legacy flat fields.
func Decode(raw []byte) (*Assessment, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}

	a := &Assessment{
		Feedback:     strings.TrimSpace(p.Feedback),
		Strengths:    nonEmpty(p.Strengths),
		Improvements: nonEmpty(p.Improvements),
		AssessedAt:   time.Now().UTC(),
	}

	if p.AssessmentVersion == string(VersionAdvanced) || p.CategoryScores != nil || p.IntegrityAnalysis != nil {
		adv, err := p.advanced()
		if err != nil {
			return nil, err
		}
		a.Version = VersionAdvanced
		a.Advanced = adv
	} else {
		legacy, err := p.legacy()
		if err != nil {
			return nil, err
		}
		a.Version = VersionLegacy
		a.Legacy = legacy
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (p *payload) legacy() (*LegacyScores, error) {
	present := presentScores(p.GrammarScore, p.CreativityScore, p.VocabularyScore,
		p.StructureScore, p.CharacterDevelopmentScore, p.PlotDevelopmentScore)
	if len(present) == 0 && p.OverallScore == nil {
		return nil, ErrEmptyPayload
	}

	overall := average(present)
	if p.OverallScore != nil {
		overall = round(*p.OverallScore)
	}

	return &LegacyScores{
		Grammar:              valueOr(p.GrammarScore, overall),
		Creativity:           valueOr(p.CreativityScore, overall),
		Vocabulary:           optional(p.VocabularyScore),
		Structure:            optional(p.StructureScore),
		CharacterDevelopment: optional(p.CharacterDevelopmentScore),
		PlotDevelopment:      optional(p.PlotDevelopmentScore),
		Overall:              overall,
	}, nil
}

func (p *payload) advanced() (*AdvancedAssessment, error) {
	c := p.CategoryScores
	if c == nil {
		// 2.0 payloads that only carry integrity data fall back to the flat fields
		c = &payloadCategories{
			Grammar:              p.GrammarScore,
			Vocabulary:           p.VocabularyScore,
			Creativity:           p.CreativityScore,
			Structure:            p.StructureScore,
			CharacterDevelopment: p.CharacterDevelopmentScore,
			PlotDevelopment:      p.PlotDevelopmentScore,
		}
	}

	present := presentScores(c.Grammar, c.Vocabulary, c.Creativity, c.Structure,
		c.CharacterDevelopment, c.PlotDevelopment)
	overallField := c.Overall
	if overallField == nil {
		overallField = p.OverallScore
	}
	if len(present) == 0 && overallField == nil {
		return nil, ErrEmptyPayload
	}

	overall := average(present)
	if overallField != nil {
		overall = round(*overallField)
	}

	adv := &AdvancedAssessment{
		CategoryScores: CategoryScores{
			Grammar:              valueOr(c.Grammar, overall),
			Vocabulary:           valueOr(c.Vocabulary, overall),
			Creativity:           valueOr(c.Creativity, overall),
			Structure:            valueOr(c.Structure, overall),
			CharacterDevelopment: valueOr(c.CharacterDevelopment, overall),
			PlotDevelopment:      valueOr(c.PlotDevelopment, overall),
			Overall:              overall,
		},
		Recommendations: decodeRecommendations(p.Recommendations),
		ReadingLevel:    p.ReadingLevel,
	}

	if in := p.IntegrityAnalysis; in != nil {
		risk := RiskLevel(strings.ToLower(strings.TrimSpace(in.IntegrityRisk)))
		if risk == "" {
			risk = RiskLow
		}
		adv.Integrity = &IntegrityAnalysis{
			OriginalityScore: valueOr(in.OriginalityScore, 100),
			PlagiarismScore:  valueOr(in.PlagiarismScore, 0),
			AIDetectionScore: valueOr(in.AIDetectionScore, 0),
			Risk:             risk,
		}
	}

	return adv, nil
}

// decodeRecommendations accepts a list of strings or a list of objects with
// a text-like field
func decodeRecommendations(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var texts []string
	if err := json.Unmarshal(raw, &texts); err == nil {
		return nonEmpty(texts)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	for _, item := range items {
		for _, key := range []string{"suggestion", "text", "recommendation", "message"} {
			if s, ok := item[key].(string); ok && strings.TrimSpace(s) != "" {
				if category, ok := item["category"].(string); ok && category != "" {
					s = category + ": " + s
				}
				texts = append(texts, strings.TrimSpace(s))
				break
			}
		}
	}
	return texts
}

func presentScores(scores ...*float64) []int {
	var out []int
	for _, s := range scores {
		if s != nil {
			out = append(out, round(*s))
		}
	}
	return out
}

func average(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores))))
}

func round(f float64) int {
	return int(math.Round(f))
}

func valueOr(f *float64, fallback int) int {
	if f == nil {
		return fallback
	}
	return round(*f)
}

func optional(f *float64) *int {
	if f == nil {
		return nil
	}
	v := round(*f)
	return &v
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
