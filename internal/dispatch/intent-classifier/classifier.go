package intentclassifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-dispatcher/internal/models"
)

// Classifier maps a raw message to a capability with pure pattern matching.
// It never blocks and holds no mutable state, so one instance serves every
// conversation.
type Classifier struct {
	config *Config
	tables map[string][]patternGroup
	now    func() time.Time
}

type Option func(*Classifier)

// WithClock sets the wall clock used to resolve "today" and "tomorrow".
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

func New(config *Config, opts ...Option) *Classifier {
	if config == nil {
		config = &Config{DefaultLanguage: LangEnglish, Location: time.UTC}
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	c := &Classifier{
		config: config,
		tables: defaultTables,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify evaluates the language's groups in priority order and returns the
// first capability with at least one hit. budget is reported through
// BudgetExceeded, never enforced.
func (c *Classifier) Classify(message string, session *models.SessionContext, budget time.Duration) models.IntentMatch {
	start := time.Now()

	fallbackLang := c.config.DefaultLanguage
	if session != nil && session.Language != "" {
		fallbackLang = session.Language
	}
	lang := DetectLanguage(message, fallbackLang)

	table, ok := c.tables[lang]
	if !ok {
		table = c.tables[LangEnglish]
	}
	text := Normalize(message, lang)

	match := models.IntentMatch{
		Capability: models.CapabilityUnknown,
		Language:   lang,
		Reasoning:  "no pattern group matched",
	}

	for _, g := range table {
		hits := g.hits(text)
		if hits == 0 {
			continue
		}

		match.Capability = g.capability
		match.Confidence = min(0.65+0.15*float64(hits), 0.95)
		match.Reasoning = fmt.Sprintf("%s: %d pattern hit(s) [%s]", g.capability, hits, lang)

		if g.capability == models.CapabilityBooking && session != nil && session.PriorIntent == models.CapabilityAvailability {
			match.Confidence = min(match.Confidence+0.10, 0.99)
			match.Reasoning += "; prior turn was availability"
		}

		match.ExtractedArgs = c.extract(g.capability, text, lang, session)
		break
	}

	match.Elapsed = time.Since(start)
	match.BudgetExceeded = budget > 0 && match.Elapsed > budget
	return match
}

func (c *Classifier) extract(capability models.Capability, text, lang string, session *models.SessionContext) map[string]interface{} {
	args := make(map[string]interface{})

	switch capability {
	case models.CapabilityFAQ, models.CapabilityPrice:
		args["query"] = residualQuery(text, lang)

	case models.CapabilityAvailability:
		if date, source, ok := c.resolveDate(text, lang, session); ok {
			args["date"] = date
			args["date_source"] = source
		}

	case models.CapabilityBooking:
		if t, ok := extractTime(text); ok {
			args["time"] = t
		}
		if session != nil {
			if session.SelectedSlot != nil {
				args["slot_id"] = session.SelectedSlot.ID
				args["doctor_id"] = session.SelectedSlot.DoctorID
				args["service_id"] = session.SelectedSlot.ServiceID
			}
			if session.DoctorID != "" {
				args["doctor_id"] = session.DoctorID
			}
			if session.ServiceID != "" {
				args["service_id"] = session.ServiceID
			}
		}
	}
	return args
}

// residualQuery drops stopwords and trigger words, keeping the subject of the question.
func residualQuery(text, lang string) string {
	stop := stopwords[lang]
	var kept []string
	for _, tok := range tokenize(text) {
		if stop[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func (c *Classifier) resolveDate(text, lang string, session *models.SessionContext) (string, string, bool) {
	loc := session.Location(c.config.Location)

	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if d, err := time.ParseInLocation("2006-01-02", m[1], loc); err == nil {
			return d.Format("2006-01-02"), "explicit", true
		}
	}

	haystack := text
	latin := lang == LangEnglish || lang == LangSpanish
	if latin {
		haystack = " " + strings.Join(tokenize(text), " ") + " "
	}
	for _, rd := range relativeDays[lang] {
		needle := rd.phrase
		if latin {
			needle = " " + needle + " "
		}
		if strings.Contains(haystack, needle) {
			day := c.now().In(loc).AddDate(0, 0, rd.offset)
			return day.Format("2006-01-02"), "relative", true
		}
	}
	return "", "", false
}

// extractTime returns a 24h HH:MM token from "14:30", "2pm" or "2:30 pm".
func extractTime(text string) (string, bool) {
	hour, minute, meridiem := -1, 0, ""

	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		meridiem = m[3]
	} else if m := meridiemPattern.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		meridiem = m[2]
	} else {
		return "", false
	}

	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour < 0 || hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
