// Package property holds the operator-configured details of the rental property the assistant represents.
package property

import (
	"strings"
	"time"
)

const (
	defaultPropertyName  = "South Oak Apartments"
	defaultAssistantName = "Sona"
	defaultMaxSentences  = 3

	// DefaultConfirmationTemplate is sent once every required detail is collected.
	DefaultConfirmationTemplate = "Thanks {name}! Here's what I have: Phone: {phone}, Email: {email}, Tour: {tour_date} at {tour_time}. You'll receive a confirmation shortly. See you then!"

	// MinKnowledgeLength is the shortest knowledge text used as the primary instruction set.
	MinKnowledgeLength = 100
)

// Config is the operator-editable assistant configuration.
type Config struct {
	PropertyName         string    `json:"property_name" yaml:"property_name"`
	Address              string    `json:"address,omitempty" yaml:"address"`
	AssistantName        string    `json:"assistant_name" yaml:"assistant_name"`
	Greeting             string    `json:"greeting" yaml:"greeting"`
	Personality          []string  `json:"personality,omitempty" yaml:"personality"`
	Knowledge            string    `json:"knowledge,omitempty" yaml:"knowledge"`
	Highlights           []string  `json:"highlights,omitempty" yaml:"highlights"`
	ConfirmationTemplate string    `json:"confirmation_template" yaml:"confirmation_template"`
	MaxSentences         int       `json:"max_sentences" yaml:"max_sentences"`
	UpdatedAt            time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// DefaultConfig returns the configuration used before an operator saves one.
func DefaultConfig() *Config {
	return &Config{
		PropertyName:  defaultPropertyName,
		AssistantName: defaultAssistantName,
		Greeting:      "Hi! I'm Sona, the virtual assistant for South Oak Apartments. How can I help you today?",
		Personality: []string{
			"Be warm, upbeat and concise.",
			"Guide the visitor toward booking a tour.",
		},
		Highlights: []string{
			"2 bed/1 bath - $1,200/month",
			"Available now, pet friendly",
		},
		ConfirmationTemplate: DefaultConfirmationTemplate,
		MaxSentences:         defaultMaxSentences,
	}
}

// WithDefaults fills blank values from DefaultConfig without touching set ones.
func (c *Config) WithDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if strings.TrimSpace(out.PropertyName) == "" {
		out.PropertyName = def.PropertyName
	}
	if strings.TrimSpace(out.AssistantName) == "" {
		out.AssistantName = def.AssistantName
	}
	if strings.TrimSpace(out.Greeting) == "" {
		out.Greeting = "Hi! I'm " + out.AssistantName + ", the virtual assistant for " + out.PropertyName + ". How can I help you today?"
	}
	if strings.TrimSpace(out.ConfirmationTemplate) == "" {
		out.ConfirmationTemplate = def.ConfirmationTemplate
	}
	if out.MaxSentences <= 0 {
		out.MaxSentences = def.MaxSentences
	}
	return &out
}

// HasKnowledge reports whether the knowledge text is long enough to drive the prompt.
func (c *Config) HasKnowledge() bool {
	return c != nil && len(strings.TrimSpace(c.Knowledge)) > MinKnowledgeLength
}

// Update is a partial change to a Config. Nil fields are left alone.
type Update struct {
	PropertyName         *string   `json:"property_name,omitempty"`
	Address              *string   `json:"address,omitempty"`
	AssistantName        *string   `json:"assistant_name,omitempty"`
	Greeting             *string   `json:"greeting,omitempty"`
	Personality          *[]string `json:"personality,omitempty"`
	Knowledge            *string   `json:"knowledge,omitempty"`
	Highlights           *[]string `json:"highlights,omitempty"`
	ConfirmationTemplate *string   `json:"confirmation_template,omitempty"`
	MaxSentences         *int      `json:"max_sentences,omitempty"`
}

// Apply returns a copy of cfg with the update applied.
func (u Update) Apply(cfg *Config) *Config {
	out := *cfg
	if u.PropertyName != nil {
		out.PropertyName = strings.TrimSpace(*u.PropertyName)
	}
	if u.Address != nil {
		out.Address = strings.TrimSpace(*u.Address)
	}
	if u.AssistantName != nil {
		out.AssistantName = strings.TrimSpace(*u.AssistantName)
	}
	if u.Greeting != nil {
		out.Greeting = strings.TrimSpace(*u.Greeting)
	}
	if u.Personality != nil {
		out.Personality = append([]string(nil), (*u.Personality)...)
	}
	if u.Knowledge != nil {
		out.Knowledge = *u.Knowledge
	}
	if u.Highlights != nil {
		out.Highlights = append([]string(nil), (*u.Highlights)...)
	}
	if u.ConfirmationTemplate != nil {
		out.ConfirmationTemplate = strings.TrimSpace(*u.ConfirmationTemplate)
	}
	if u.MaxSentences != nil && *u.MaxSentences > 0 {
		out.MaxSentences = *u.MaxSentences
	}
	return &out
}
