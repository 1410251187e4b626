package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/leasing-ai-platform/internal/leadfields"
)

// ErrInvalidPolicy reports an unparseable policy or pipeline expression.
var ErrInvalidPolicy = errors.New("conversation: invalid field policy")

// Policy is a conjunction of alternatives: "first_name,phone|email" means
// first_name AND (phone OR email).
type Policy struct {
	groups [][]leadfields.Field
}

// ParsePolicy parses a comma (AND) and pipe (OR) separated field expression.
func ParsePolicy(expr string) (Policy, error) {
	var p Policy
	for _, clause := range strings.Split(expr, ",") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		var group []leadfields.Field
		for _, token := range strings.Split(clause, "|") {
			field, ok := leadfields.ParseField(token)
			if !ok {
				return Policy{}, fmt.Errorf("%w: unknown field %q", ErrInvalidPolicy, strings.TrimSpace(token))
			}
			group = append(group, field)
		}
		p.groups = append(p.groups, group)
	}
	if len(p.groups) == 0 {
		return Policy{}, fmt.Errorf("%w: empty expression", ErrInvalidPolicy)
	}
	return p, nil
}

// MustParsePolicy is ParsePolicy for constant expressions.
func MustParsePolicy(expr string) Policy {
	p, err := ParsePolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Satisfied reports whether every clause has at least one present field.
func (p Policy) Satisfied(fields leadfields.Fields) bool {
	if len(p.groups) == 0 {
		return false
	}
	for _, group := range p.groups {
		if !anyPresent(fields, group) {
			return false
		}
	}
	return true
}

// Unmet lists the fields of clauses that are not yet satisfied.
func (p Policy) Unmet(fields leadfields.Fields) []leadfields.Field {
	var out []leadfields.Field
	for _, group := range p.groups {
		if !anyPresent(fields, group) {
			out = append(out, group...)
		}
	}
	return out
}

func (p Policy) String() string {
	clauses := make([]string, 0, len(p.groups))
	for _, group := range p.groups {
		names := make([]string, 0, len(group))
		for _, f := range group {
			names = append(names, string(f))
		}
		clauses = append(clauses, strings.Join(names, "|"))
	}
	return strings.Join(clauses, ",")
}

func anyPresent(fields leadfields.Fields, group []leadfields.Field) bool {
	for _, f := range group {
		if fields.Has(f) {
			return true
		}
	}
	return false
}

// Pipeline is the ordered list of collection gates.
type Pipeline []leadfields.Field

// DefaultPipeline is tour date, tour time, name, phone, email, optionally led by move-in date.
func DefaultPipeline(askMoveIn bool) Pipeline {
	p := Pipeline{leadfields.TourDate, leadfields.TourTime, leadfields.FirstName, leadfields.Phone, leadfields.Email}
	if askMoveIn {
		p = append(Pipeline{leadfields.MoveInDate}, p...)
	}
	return p
}

// ParsePipeline parses a comma separated gate list such as "tour_date,tour_time,name,phone".
func ParsePipeline(expr string) (Pipeline, error) {
	var p Pipeline
	seen := map[leadfields.Field]bool{}
	for _, token := range strings.Split(expr, ",") {
		if strings.TrimSpace(token) == "" {
			continue
		}
		field, ok := leadfields.ParseField(token)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidPolicy, strings.TrimSpace(token))
		}
		if !seen[field] {
			seen[field] = true
			p = append(p, field)
		}
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", ErrInvalidPolicy)
	}
	return p, nil
}

// Next returns the first gate without a value, or "".
func (p Pipeline) Next(fields leadfields.Fields) leadfields.Field {
	for _, f := range p {
		if !fields.Has(f) {
			return f
		}
	}
	return ""
}
