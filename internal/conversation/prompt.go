package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
)

var nextActions = map[leadfields.Field]string{
	leadfields.MoveInDate: "Ask when they are hoping to move in.",
	leadfields.TourDate:   "Ask which day they would like to come see the property.",
	leadfields.TourTime:   "Ask what time works best for the tour, morning or afternoon.",
	leadfields.FirstName:  "Ask for their first name.",
	leadfields.LastName:   "Ask for their last name.",
	leadfields.Phone:      "Ask for the best phone number to reach them.",
	leadfields.Email:      "Ask for their email address so the confirmation can be sent.",
}

// PromptBuilder renders the system instruction for one turn. The output depends only on
// its inputs, so any process handling the next turn produces the same text.
type PromptBuilder struct {
	rules Rules
}

func NewPromptBuilder(rules Rules) *PromptBuilder {
	return &PromptBuilder{rules: rules}
}

// Build assembles the instruction block.
func (b *PromptBuilder) Build(cfg *property.Config, fields leadfields.Fields, st State, lastUserMessage string) string {
	cfg = cfg.WithDefaults()
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, the virtual leasing assistant for %s", cfg.AssistantName, cfg.PropertyName)
	if cfg.Address != "" {
		fmt.Fprintf(&sb, " at %s", cfg.Address)
	}
	sb.WriteString(".\n\n")

	if cfg.HasKnowledge() {
		sb.WriteString("PROPERTY KNOWLEDGE (follow these instructions and facts):\n")
		sb.WriteString(strings.TrimSpace(cfg.Knowledge))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("PROPERTY:\n")
		for _, h := range cfg.Highlights {
			if h = strings.TrimSpace(h); h != "" {
				fmt.Fprintf(&sb, "- %s\n", h)
			}
		}
		sb.WriteString("- For anything not listed here, offer to have the leasing team follow up.\n\n")
	}

	if len(cfg.Personality) > 0 {
		sb.WriteString("PERSONALITY:\n")
		for _, p := range cfg.Personality {
			if p = strings.TrimSpace(p); p != "" {
				fmt.Fprintf(&sb, "- %s\n", p)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("ALREADY COLLECTED (never ask for these again):\n")
	if len(st.Known) == 0 {
		sb.WriteString("- nothing yet\n")
	}
	for _, f := range st.Known {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Label(), fields[f])
	}
	sb.WriteString("\nSTILL NEEDED:\n")
	if len(st.Missing) == 0 {
		sb.WriteString("- nothing\n")
	}
	for _, f := range st.Missing {
		fmt.Fprintf(&sb, "- %s\n", f.Label())
	}

	sb.WriteString("\nNEXT ACTION: ")
	sb.WriteString(b.nextAction(st))
	sb.WriteString("\n")
	if needsTimeNudge(fields, lastUserMessage) {
		sb.WriteString("The visitor just gave a day without a time. Ask what time works best that day, morning or afternoon, before anything else.\n")
	}

	sb.WriteString("\nRULES:\n")
	fmt.Fprintf(&sb, "- Reply in at most %d sentences.\n", cfg.MaxSentences)
	sb.WriteString("- Plain text only. No markdown, lists, headings or emoji.\n")
	sb.WriteString("- Ask for one thing at a time.\n")
	sb.WriteString("- Never make up prices, availability or amenities that are not given above.\n")
	sb.WriteString("- Stay fair housing compliant. Never comment on or ask about protected characteristics.\n")
	sb.WriteString("- Never ask again for anything listed under ALREADY COLLECTED.\n")

	sb.WriteString("\nCONFIRMATION (send only once nothing is still needed, and send nothing else):\n")
	fmt.Fprintf(&sb, "%q\n", cfg.ConfirmationTemplate)
	sb.WriteString("Replace {name}, {first_name}, {last_name}, {phone}, {email}, {tour_date}, {tour_time} and {move_in_date} with the collected values above. Never invent a value.")
	return sb.String()
}

func (b *PromptBuilder) nextAction(st State) string {
	if st.IsComplete {
		return "Everything is collected. Send the confirmation message below."
	}
	if action, ok := nextActions[st.NextField]; ok {
		return action
	}
	return "Answer their questions and ask for whatever is still needed."
}

// needsTimeNudge is true when the newest message names a tour day but no time, and no time is known.
func needsTimeNudge(fields leadfields.Fields, lastUserMessage string) bool {
	if fields.Has(leadfields.TourTime) {
		return false
	}
	extracted := leadfields.Extract(lastUserMessage)
	return extracted.Has(leadfields.TourDate) && !extracted.Has(leadfields.TourTime)
}

// FillTemplate substitutes placeholders with collected values. Unknown values stay as placeholders.
func FillTemplate(template string, fields leadfields.Fields) string {
	pairs := []string{}
	add := func(placeholder, value string) {
		if strings.TrimSpace(value) != "" {
			pairs = append(pairs, placeholder, value)
		}
	}
	add("{name}", fields.FullName())
	for _, f := range leadfields.AllFields {
		add("{"+string(f)+"}", fields[f])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
