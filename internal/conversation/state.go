package conversation

import (
	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

// Phase describes how far the collection pipeline has progressed.
type Phase string

const (
	PhaseGreeting   Phase = "GREETING"
	PhaseCollecting Phase = "COLLECTING"
	PhaseScheduling Phase = "SCHEDULING"
	PhaseComplete   Phase = "COMPLETE"
)

var phaseRank = map[Phase]int{
	PhaseGreeting:   0,
	PhaseCollecting: 1,
	PhaseScheduling: 2,
	PhaseComplete:   3,
}

// Before reports whether p comes strictly earlier than other.
func (p Phase) Before(other Phase) bool {
	return phaseRank[p] < phaseRank[other]
}

// Rules bundles the collection pipeline with the qualification and completion policies.
type Rules struct {
	Pipeline Pipeline
	// Qualify is the minimum set of fields that creates a lead and triggers the external sync.
	Qualify Policy
	// Complete decides when the confirmation message is due.
	Complete Policy
}

// DefaultRules qualifies on phone or email and completes on name, contact and tour slot.
func DefaultRules() Rules {
	return Rules{
		Pipeline: DefaultPipeline(false),
		Qualify:  MustParsePolicy("phone|email"),
		Complete: MustParsePolicy("first_name,phone,email,tour_date,tour_time"),
	}
}

// State is the per-turn projection of the collected fields. It is never persisted.
type State struct {
	Phase         Phase              `json:"phase"`
	NextField     leadfields.Field   `json:"nextField,omitempty"`
	IsComplete    bool               `json:"isComplete"`
	LeadQualified bool               `json:"leadQualified"`
	Known         []leadfields.Field `json:"known,omitempty"`
	Missing       []leadfields.Field `json:"missing,omitempty"`
}

var schedulingGates = map[leadfields.Field]bool{
	leadfields.MoveInDate: true,
	leadfields.TourDate:   true,
	leadfields.TourTime:   true,
}

// DeriveState projects fields onto the pipeline and policies. The phase depends only
// on which fields are present, so it never moves backward as fields accumulate.
func DeriveState(fields leadfields.Fields, rules Rules) State {
	st := State{
		NextField:     rules.Pipeline.Next(fields),
		IsComplete:    rules.Complete.Satisfied(fields),
		LeadQualified: rules.Qualify.Satisfied(fields),
		Known:         fields.Present(),
	}

	seen := map[leadfields.Field]bool{}
	for _, f := range rules.Pipeline {
		if !fields.Has(f) && !seen[f] {
			seen[f] = true
			st.Missing = append(st.Missing, f)
		}
	}
	for _, f := range rules.Complete.Unmet(fields) {
		if !seen[f] {
			seen[f] = true
			st.Missing = append(st.Missing, f)
		}
	}

	switch {
	case st.IsComplete:
		st.Phase = PhaseComplete
	case !tourDetailsKnown(fields, rules.Pipeline):
		st.Phase = PhaseCollecting
	default:
		st.Phase = PhaseScheduling
	}
	return st
}

// tourDetailsKnown reports whether every scheduling gate in the pipeline holds,
// wherever the pipeline places them.
func tourDetailsKnown(fields leadfields.Fields, pipeline Pipeline) bool {
	for _, f := range pipeline {
		if schedulingGates[f] && !fields.Has(f) {
			return false
		}
	}
	return true
}

// DeriveSessionState is DeriveState plus the greeting phase for a session the visitor has not written in yet.
func DeriveSessionState(s *Session, rules Rules) State {
	var fields leadfields.Fields
	if s != nil {
		fields = s.CollectedFields
	}
	st := DeriveState(fields, rules)
	if s == nil || (s.UserMessageCount == 0 && len(st.Known) == 0) {
		st.Phase = PhaseGreeting
	}
	return st
}
