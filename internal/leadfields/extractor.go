package leadfields

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// "tonight@7:00" is a time, not an email address.
	dayAtHourRE = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|this evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s*@\s*(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)

	emailRE       = regexp.MustCompile(`(?i)\b([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})\b`)
	// The word "at" only separates a spoken address whose domain is spelled with "dot",
	// so "listing at zillow.com" is not an email.
	spokenEmailRE = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9._%+-]*(?:\s+dot\s+[a-z0-9][a-z0-9._%+-]*)*)(?:\s*@\s*([a-z0-9-]+(?:(?:\s+dot\s+|\.)[a-z0-9-]+)*(?:\s+dot\s+|\.)[a-z]{2,})|\s+at\s+([a-z0-9-]+(?:\s+dot\s+[a-z0-9-]+)*\s+dot\s+[a-z]{2,}))\b`)
	spokenDotRE   = regexp.MustCompile(`(?i)\s+dot\s+`)

	phoneRE = regexp.MustCompile(`(?:^|\D)(?:\+?1[\s.-]?)?(\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4})(?:\D|$)`)

	nameIntroRE = regexp.MustCompile(`(?i)\b(?:my name is|my name['’]s|name is|name['’]s|i['’]m|i am|im|this is|call me|it['’]s|its)\s+([a-z][a-z'-]*)(?:\s+([a-z][a-z'-]*))?`)
	bareNameRE  = regexp.MustCompile(`^([A-Za-z][A-Za-z'-]*)(?:\s+([A-Za-z][A-Za-z'-]*))?$`)

	tourDateRE = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|this evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d{1,2}/\d{1,2})\b`)

	meridiemTimeRE = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?)\s*([ap])\.?\s*m\b\.?`)
	clockTimeRE    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	// A bare hour only counts next to a day word: "saturday at 3", "at 3 tomorrow".
	atHourRE       = regexp.MustCompile(`(?i)\b(?:today|tonight|tomorrow|this evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s+(?:at|around)\s+(\d{1,2})\b|\bat\s+(\d{1,2})\s+(?:on\s+)?(?:today|tonight|tomorrow|this evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	dayPartRE      = regexp.MustCompile(`(?i)\b(morning|afternoon|noon|midday|evening|tonight)\b`)

	moveInRE  = regexp.MustCompile(`(?i)\b(?:move|moving|movein|relocat\w*|lease\s+start\w*|start(?:ing)?\s+(?:the\s+|my\s+)?lease|need\s+(?:a\s+place|something|it)\s+by)\b[^.?!]{0,40}?\b((?:in\s+)?\d+\s+(?:days?|weeks?|months?)|next month|this month|end of (?:the )?month|january|february|march|april|may|june|july|august|september|october|november|december|\d{1,2}/\d{1,2}|asap|as soon as possible|immediately|right away)\b`)
	urgencyRE = regexp.MustCompile(`(?i)\b(asap|as soon as possible|immediately|right away)\b`)
)

// nonNames holds words that follow "I'm" or stand alone on a line without being a name.
var nonNames = buildSet(
	// conversational filler
	"yes", "yeah", "yep", "yup", "no", "nope", "nah", "ok", "okay", "sure", "hi", "hello", "hey",
	"thanks", "thank", "thx", "cool", "great", "good", "fine", "perfect", "awesome", "nice", "lol",
	"haha", "bye", "goodbye", "sounds", "works", "thing", "please", "maybe", "nothing", "none", "all",
	"hmm", "um", "uh", "correct", "right", "exactly", "definitely", "absolutely",
	// "I'm ..." continuations
	"interested", "interesting", "looking", "wondering", "curious", "available", "free", "just", "not",
	"here", "there", "hoping", "planning", "moving", "going", "calling", "trying", "ready", "new",
	"thinking", "also", "still", "so", "very", "really", "currently", "busy", "back", "sorry",
	"asking", "checking", "texting", "writing", "reaching", "glad", "happy", "excited",
	// "it's ..." continuations
	"too", "expensive", "pricey", "cheap", "affordable", "big", "small", "tiny", "huge", "late",
	"early", "possible", "open", "closed", "quiet", "loud", "far", "close", "fine", "ok", "okay",
	"hard", "easy", "weird", "odd", "strange", "true", "false", "gone", "over", "done",
	// grammar words
	"a", "an", "the", "and", "or", "but", "with", "from", "for", "at", "to", "in", "on", "of", "by",
	"my", "me", "you", "your", "it", "this", "that", "is", "are", "was", "what", "when", "where",
	"how", "why", "who", "which", "can", "could", "would", "will", "do", "does", "any", "some",
	// scheduling words
	"today", "tonight", "tomorrow", "morning", "afternoon", "evening", "noon", "night", "asap", "now",
	"later", "soon", "weekend", "weekday", "anytime", "whenever", "next", "week", "month",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august", "september",
	"october", "november", "december",
	// rental words
	"one", "two", "three", "studio", "bedroom", "bed", "bath", "apartment", "apartments", "unit",
	"tour", "tours", "pet", "pets", "parking", "rent", "price", "lease", "available", "email", "phone",
)

func buildSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func isNonName(word string) bool {
	_, ok := nonNames[strings.ToLower(word)]
	return ok || len(word) < 2
}

// ExtractOption tunes Extract for the turn being read.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	nameExpected bool
}

// WithNameExpected lets a bare one or two word reply count as a name. Use it when
// the assistant's last message asked for the visitor's name.
func WithNameExpected(expected bool) ExtractOption {
	return func(c *extractConfig) {
		c.nameExpected = expected
	}
}

// ExtractAll scans utterances in order and keeps the first value seen for each field.
func ExtractAll(utterances ...string) Fields {
	out := Fields{}
	for _, u := range utterances {
		Merge(out, Extract(u))
	}
	return out
}

// Extract pulls every recognizable field out of a single utterance.
func Extract(text string, opts ...ExtractOption) Fields {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	out := Fields{}
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	text = dayAtHourRE.ReplaceAllString(text, "$1 at $2")

	set := func(f Field, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[f] = v
		}
	}
	email := extractEmail(text)
	set(Email, email)
	set(Phone, extractPhone(text))
	if email == "" {
		first, last := extractName(text, cfg.nameExpected)
		set(FirstName, first)
		set(LastName, last)
	}
	moveIn, moveSpan := extractMoveIn(text)
	set(MoveInDate, moveIn)
	set(TourDate, extractTourDate(text, moveSpan))
	set(TourTime, extractTourTime(text))
	return out
}

func extractEmail(text string) string {
	if m := emailRE.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	m := spokenEmailRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	domain := m[2]
	if domain == "" {
		domain = m[3]
	}
	local := spokenDotRE.ReplaceAllString(m[1], ".")
	domain = spokenDotRE.ReplaceAllString(domain, ".")
	return strings.ToLower(strings.ReplaceAll(local+"@"+domain, " ", ""))
}

func extractPhone(text string) string {
	m := phoneRE.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	var digits strings.Builder
	for _, r := range m[1] {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() != 10 {
		return ""
	}
	return digits.String()
}

func extractName(text string, bareLines bool) (first, last string) {
	for _, m := range nameIntroRE.FindAllStringSubmatch(text, -1) {
		if isNonName(m[1]) {
			continue
		}
		first = titleCase(m[1])
		if m[2] != "" && !isNonName(m[2]) {
			last = titleCase(m[2])
		}
		return first, last
	}
	if !bareLines {
		return "", ""
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") {
			continue
		}
		line = strings.TrimRight(line, ".!, ")
		m := bareNameRE.FindStringSubmatch(line)
		if m == nil || isNonName(m[1]) || (m[2] != "" && isNonName(m[2])) {
			continue
		}
		return titleCase(m[1]), titleCase(m[2])
	}
	return "", ""
}

func extractMoveIn(text string) (string, []int) {
	if loc := moveInRE.FindStringSubmatchIndex(text); loc != nil {
		return strings.ToLower(text[loc[2]:loc[3]]), loc[:2]
	}
	if loc := urgencyRE.FindStringSubmatchIndex(text); loc != nil {
		return strings.ToLower(text[loc[2]:loc[3]]), loc[:2]
	}
	return "", nil
}

func extractTourDate(text string, skip []int) string {
	for _, loc := range tourDateRE.FindAllStringSubmatchIndex(text, -1) {
		if skip != nil && loc[0] >= skip[0] && loc[1] <= skip[1] {
			continue
		}
		value := strings.ToLower(text[loc[2]:loc[3]])
		if strings.Contains(value, "/") && !validMonthDay(value) {
			continue
		}
		return value
	}
	return ""
}

func validMonthDay(value string) bool {
	parts := strings.SplitN(value, "/", 2)
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	return err1 == nil && err2 == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31
}

func extractTourTime(text string) string {
	if m := meridiemTimeRE.FindStringSubmatch(text); m != nil {
		if hour, _ := strconv.Atoi(strings.SplitN(m[1], ":", 2)[0]); hour >= 1 && hour <= 12 {
			return m[1] + strings.ToLower(m[2]) + "m"
		}
	}
	for _, m := range clockTimeRE.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return m[0]
		}
	}
	if m := atHourRE.FindStringSubmatch(text); m != nil {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		if hour, _ := strconv.Atoi(value); hour >= 1 && hour <= 12 {
			return value
		}
	}
	if m := dayPartRE.FindStringSubmatch(text); m != nil {
		switch part := strings.ToLower(m[1]); part {
		case "midday":
			return "noon"
		case "tonight":
			return "evening"
		default:
			return part
		}
	}
	return ""
}

func titleCase(word string) string {
	if word == "" {
		return ""
	}
	parts := strings.Split(strings.ToLower(word), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, "-")
}
