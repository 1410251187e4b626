package leadfields

import "strings"

// Field names a piece of lead information collected during a conversation.
type Field string

const (
	FirstName  Field = "first_name"
	LastName   Field = "last_name"
	Phone      Field = "phone"
	Email      Field = "email"
	TourDate   Field = "tour_date"
	TourTime   Field = "tour_time"
	MoveInDate Field = "move_in_date"
)

// AllFields lists every known field in canonical order.
var AllFields = []Field{FirstName, LastName, Phone, Email, TourDate, TourTime, MoveInDate}

var fieldLabels = map[Field]string{
	FirstName:  "First name",
	LastName:   "Last name",
	Phone:      "Phone",
	Email:      "Email",
	TourDate:   "Tour date",
	TourTime:   "Tour time",
	MoveInDate: "Move-in date",
}

// Label returns a human readable name for the field.
func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// ParseField maps a config token such as "phone" or "name" to a Field.
func ParseField(raw string) (Field, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "name" {
		return FirstName, true
	}
	for _, f := range AllFields {
		if string(f) == token {
			return f, true
		}
	}
	return "", false
}

// Fields is a partial mapping of field to value. Missing keys and empty values are equivalent.
type Fields map[Field]string

// Has reports whether the field carries a non-empty value.
func (f Fields) Has(field Field) bool {
	return strings.TrimSpace(f[field]) != ""
}

// Get returns the value for a field or "".
func (f Fields) Get(field Field) string {
	return f[field]
}

// Clone returns a copy safe to mutate.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Present returns the set fields in canonical order.
func (f Fields) Present() []Field {
	var out []Field
	for _, field := range AllFields {
		if f.Has(field) {
			out = append(out, field)
		}
	}
	return out
}

// FullName joins first and last name.
func (f Fields) FullName() string {
	return strings.TrimSpace(f[FirstName] + " " + f[LastName])
}

// Merge copies values from src into dst without ever replacing a value dst already holds.
// It returns the fields that were newly set, in canonical order.
func Merge(dst, src Fields) []Field {
	if dst == nil {
		return nil
	}
	var added []Field
	for _, field := range AllFields {
		value := strings.TrimSpace(src[field])
		if value == "" || dst.Has(field) {
			continue
		}
		dst[field] = value
		added = append(added, field)
	}
	return added
}
