package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Prompt is one system/user template pair plus sampling settings
type Prompt struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	user *template.Template
}

// Prompts holds every prompt the client sends
type Prompts struct {
	ContinueStory Prompt `yaml:"continue_story"`
	AssessStory   Prompt `yaml:"assess_story"`
}

// LoadPrompts parses the embedded defaults and, when path is set, overlays
// the file found there. Keys missing from the override keep their defaults.
func LoadPrompts(path string) (*Prompts, error) {
	p, err := parsePrompts(defaultPromptsYAML, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing default prompts: %w", err)
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}
	return parsePrompts(data, p)
}

func parsePrompts(data []byte, base *Prompts) (*Prompts, error) {
	p := &Prompts{}
	if base != nil {
		*p = *base
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing prompts: %w", err)
	}

	for name, prompt := range map[string]*Prompt{
		"continue_story": &p.ContinueStory,
		"assess_story":   &p.AssessStory,
	} {
		if prompt.System == "" || prompt.User == "" {
			return nil, fmt.Errorf("prompt %s needs both system and user text", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(prompt.User)
		if err != nil {
			return nil, fmt.Errorf("parsing %s user template: %w", name, err)
		}
		prompt.user = tmpl
	}
	return p, nil
}

// render executes the user template against data
func (p *Prompt) render(data any) (string, error) {
	var buf bytes.Buffer
	if err := p.user.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}
