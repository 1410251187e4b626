package leadfields

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts []ExtractOption
		want Fields
	}{
		{
			name: "name and phone in one line",
			text: "Hi, I'm Frank, call me at 509-555-1212",
			want: Fields{FirstName: "Frank", Phone: "5095551212"},
		},
		{
			name: "day at hour is not an email",
			text: "tonight@7:00",
			want: Fields{TourDate: "tonight", TourTime: "7:00"},
		},
		{
			name: "at with a real domain is not an email",
			text: "I saw your listing at zillow.com",
			want: Fields{},
		},
		{
			name: "spoken email with at and dot words",
			text: "jane at example dot com",
			want: Fields{Email: "jane@example.com"},
		},
		{
			name: "number after about is not a time",
			text: "I'm asking about 2 bedroom units",
			want: Fields{},
		},
		{
			name: "number after around is not a time",
			text: "rent around 1500 with around 2 roommates",
			want: Fields{},
		},
		{
			name: "bare hour after a day word",
			text: "Saturday at 3 works",
			want: Fields{TourDate: "saturday", TourTime: "3"},
		},
		{
			name: "bare hour before a day word",
			text: "how about at 4 tomorrow",
			want: Fields{TourDate: "tomorrow", TourTime: "4"},
		},
		{
			name: "full name lowercased",
			text: "my name is jane doe",
			want: Fields{FirstName: "Jane", LastName: "Doe"},
		},
		{
			name: "bare name line when a name was asked for",
			text: "frank",
			opts: []ExtractOption{WithNameExpected(true)},
			want: Fields{FirstName: "Frank"},
		},
		{
			name: "bare word is not a name unless asked",
			text: "Laundry",
			want: Fields{},
		},
		{
			name: "it's followed by an adjective is not a name",
			text: "It's too expensive",
			want: Fields{},
		},
		{
			name: "call me at is not a name",
			text: "call me at (509) 555-1212",
			want: Fields{Phone: "5095551212"},
		},
		{
			name: "country code prefix",
			text: "+1 509.555.1212",
			want: Fields{Phone: "5095551212"},
		},
		{
			name: "spoken email",
			text: "it is frank dot smith at gmail dot com",
			want: Fields{Email: "frank.smith@gmail.com"},
		},
		{
			name: "plain email suppresses name parsing",
			text: "I'm Frank, Frank@Example.com",
			want: Fields{Email: "frank@example.com"},
		},
		{
			name: "weekday and meridiem time",
			text: "Could I come Saturday at 2pm?",
			want: Fields{TourDate: "saturday", TourTime: "2pm"},
		},
		{
			name: "month day and day part",
			text: "3/15 in the morning works",
			want: Fields{TourDate: "3/15", TourTime: "morning"},
		},
		{
			name: "move-in phrasing is not a tour date",
			text: "We want to move in 2 weeks",
			want: Fields{MoveInDate: "in 2 weeks"},
		},
		{
			name: "move-in month",
			text: "looking to move in March",
			want: Fields{MoveInDate: "march"},
		},
		{
			name: "urgency alone means move-in",
			text: "I need something asap",
			want: Fields{MoveInDate: "asap"},
		},
		{
			name: "filler is not a name",
			text: "Sounds good",
			want: Fields{},
		},
		{
			name: "question line is not a name",
			text: "Pets allowed?",
			want: Fields{},
		},
		{
			name: "i'm looking is not a name",
			text: "I'm looking for a two bedroom",
			want: Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text, tt.opts...)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for field, value := range tt.want {
				if got[field] != value {
					t.Fatalf("Extract(%q)[%s] = %q, want %q (all: %v)", tt.text, field, got[field], value, got)
				}
			}
		})
	}
}

func TestExtractAllKeepsFirstValue(t *testing.T) {
	got := ExtractAll(
		"I'm Frank",
		"actually my name is Bob, number 509-555-1212",
		"Saturday",
		"or Sunday at 3pm",
	)
	want := Fields{FirstName: "Frank", Phone: "5095551212", TourDate: "saturday", TourTime: "3pm"}
	for field, value := range want {
		if got[field] != value {
			t.Fatalf("field %s = %q, want %q (all: %v)", field, got[field], value, got)
		}
	}
}

func TestMergeNeverOverwrites(t *testing.T) {
	dst := Fields{FirstName: "Frank"}
	added := Merge(dst, Fields{FirstName: "Bob", Phone: "5095551212", Email: "  "})
	if dst[FirstName] != "Frank" {
		t.Fatalf("expected first name preserved, got %q", dst[FirstName])
	}
	if len(added) != 1 || added[0] != Phone {
		t.Fatalf("expected only phone added, got %v", added)
	}
	if dst.Has(Email) {
		t.Fatalf("blank values must not be merged")
	}
}

func TestParseField(t *testing.T) {
	if f, ok := ParseField(" Phone "); !ok || f != Phone {
		t.Fatalf("expected phone, got %q %v", f, ok)
	}
	if f, ok := ParseField("name"); !ok || f != FirstName {
		t.Fatalf("expected name alias for first_name, got %q", f)
	}
	if _, ok := ParseField("budget"); ok {
		t.Fatalf("unexpected field for budget")
	}
}
