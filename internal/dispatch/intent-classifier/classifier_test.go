package intentclassifier

import (
	"testing"
	"time"

	"clinic-dispatcher/internal/common/config"
	"clinic-dispatcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)

func createTestClassifier() *Classifier {
	return New(&Config{DefaultLanguage: LangEnglish, Location: time.UTC}, WithClock(func() time.Time { return fixedNow }))
}

// ==========================
// Language Detection
// ==========================

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"Hello, what are your hours?", LangEnglish},
		{"¿Cuánto cuesta una limpieza?", LangSpanish},
		{"hola", LangSpanish},
		{"tienen cita para hoy", LangSpanish},
		{"Сколько стоит чистка?", LangRussian},
		{"שלום, מה שעות הפתיחה?", LangHebrew},
		{"", "he"},
		{"12345 ?!", "he"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.text, "he"))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "¿cuanto cuesta una limpieza?", Normalize("¿Cuánto cuesta una LIMPIEZA?", LangSpanish))
	assert.Equal(t, "сколько стоит", Normalize("  Сколько стоит ", LangRussian))
}

// ==========================
// Classification
// ==========================

func TestClassify_Capabilities(t *testing.T) {
	c := createTestClassifier()

	tests := []struct {
		name          string
		message       string
		session       *models.SessionContext
		capability    models.Capability
		language      string
		minConfidence float64
		args          map[string]interface{}
	}{
		{
			name:          "faq hours",
			message:       "What are your hours?",
			capability:    models.CapabilityFAQ,
			language:      LangEnglish,
			minConfidence: 0.6,
			args:          map[string]interface{}{"query": "hours"},
		},
		{
			name:          "spanish price",
			message:       "¿Cuánto cuesta una limpieza?",
			capability:    models.CapabilityPrice,
			language:      LangSpanish,
			minConfidence: 0.9,
			args:          map[string]interface{}{"query": "limpieza"},
		},
		{
			name:          "english price residual",
			message:       "How much is a teeth cleaning?",
			capability:    models.CapabilityPrice,
			language:      LangEnglish,
			minConfidence: 0.8,
			args:          map[string]interface{}{"query": "teeth cleaning"},
		},
		{
			name:          "availability pre-empts faq",
			message:       "Do you have availability tomorrow?",
			capability:    models.CapabilityAvailability,
			language:      LangEnglish,
			minConfidence: 0.8,
			args:          map[string]interface{}{"date": "2026-03-03", "date_source": "relative"},
		},
		{
			name:          "explicit iso date",
			message:       "Any openings on 2026-04-15?",
			capability:    models.CapabilityAvailability,
			language:      LangEnglish,
			minConfidence: 0.8,
			args:          map[string]interface{}{"date": "2026-04-15", "date_source": "explicit"},
		},
		{
			name:          "spanish availability tomorrow",
			message:       "¿Hay citas disponibles para mañana?",
			capability:    models.CapabilityAvailability,
			language:      LangSpanish,
			minConfidence: 0.95,
			args:          map[string]interface{}{"date": "2026-03-03", "date_source": "relative"},
		},
		{
			name:          "booking with meridiem time",
			message:       "I want to book an appointment at 3pm",
			capability:    models.CapabilityBooking,
			language:      LangEnglish,
			minConfidence: 0.8,
			args:          map[string]interface{}{"time": "15:00"},
		},
		{
			name:          "russian price",
			message:       "Сколько стоит чистка зубов?",
			capability:    models.CapabilityPrice,
			language:      LangRussian,
			minConfidence: 0.8,
			args:          map[string]interface{}{"query": "чистка зубов"},
		},
		{
			name:          "hebrew availability",
			message:       "יש תור פנוי מחר?",
			capability:    models.CapabilityAvailability,
			language:      LangHebrew,
			minConfidence: 0.95,
			args:          map[string]interface{}{"date": "2026-03-03", "date_source": "relative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := c.Classify(tt.message, tt.session, 5*time.Millisecond)

			assert.Equal(t, tt.capability, match.Capability, match.Reasoning)
			assert.Equal(t, tt.language, match.Language)
			assert.GreaterOrEqual(t, match.Confidence, tt.minConfidence)
			assert.LessOrEqual(t, match.Confidence, 1.0)
			for k, v := range tt.args {
				assert.Equal(t, v, match.ExtractedArgs[k], "arg %s", k)
			}
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	c := createTestClassifier()

	for _, msg := range []string{"asdf qwerty", "12345", "", "🙂"} {
		match := c.Classify(msg, nil, time.Millisecond)
		assert.Equal(t, models.CapabilityUnknown, match.Capability, msg)
		assert.Zero(t, match.Confidence, msg)
		assert.Empty(t, match.ExtractedArgs, msg)
	}
}

func TestClassify_MultipleHitsRaiseConfidence(t *testing.T) {
	c := createTestClassifier()

	single := c.Classify("how much for whitening", nil, 0)
	double := c.Classify("how much is the price of whitening", nil, 0)

	require.Equal(t, models.CapabilityPrice, single.Capability)
	require.Equal(t, models.CapabilityPrice, double.Capability)
	assert.Greater(t, double.Confidence, single.Confidence)
}

func TestClassify_BookingBoostAfterAvailability(t *testing.T) {
	c := createTestClassifier()
	slot := &models.Slot{ID: "slot-7", DoctorID: "doc-2", ServiceID: "svc-1"}

	cold := c.Classify("Can I book the 10:30 one", &models.SessionContext{SessionID: "s1", SelectedSlot: slot}, 0)
	warm := c.Classify("Can I book the 10:30 one", &models.SessionContext{
		SessionID:    "s1",
		PriorIntent:  models.CapabilityAvailability,
		SelectedSlot: slot,
	}, 0)

	require.Equal(t, models.CapabilityBooking, warm.Capability)
	assert.Greater(t, warm.Confidence, cold.Confidence)
	assert.Equal(t, "10:30", warm.ExtractedArgs["time"])
	assert.Equal(t, "slot-7", warm.ExtractedArgs["slot_id"])
	assert.Equal(t, "doc-2", warm.ExtractedArgs["doctor_id"])
	assert.Equal(t, "svc-1", warm.ExtractedArgs["service_id"])
	assert.Contains(t, warm.Reasoning, "prior turn was availability")
}

func TestClassify_RelativeDateUsesSessionTimezone(t *testing.T) {
	c := createTestClassifier()

	utc := c.Classify("What's available today?", nil, 0)
	local := c.Classify("What's available today?", &models.SessionContext{Timezone: "Asia/Jerusalem"}, 0)

	assert.Equal(t, "2026-03-02", utc.ExtractedArgs["date"])
	assert.Equal(t, "2026-03-03", local.ExtractedArgs["date"])
}

func TestClassify_AvailabilityWithoutDate(t *testing.T) {
	match := createTestClassifier().Classify("Any free slots next week?", nil, 0)

	require.Equal(t, models.CapabilityAvailability, match.Capability)
	_, ok := match.ExtractedArgs["date"]
	assert.False(t, ok)
}

func TestClassify_BudgetReporting(t *testing.T) {
	c := createTestClassifier()

	over := c.Classify("What are your hours?", nil, time.Nanosecond)
	assert.True(t, over.BudgetExceeded)
	assert.Positive(t, over.Elapsed)

	unbounded := c.Classify("What are your hours?", nil, 0)
	assert.False(t, unbounded.BudgetExceeded)
	assert.Less(t, unbounded.Elapsed, 50*time.Millisecond)
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"at 14:30 please", "14:30", true},
		{"2pm works", "14:00", true},
		{"2:30 pm", "14:30", true},
		{"12am", "00:00", true},
		{"9:05", "09:05", true},
		{"25:00", "", false},
		{"2026-04-15", "", false},
		{"no time here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := extractTime(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(config.DispatcherConfig{Timezone: "America/Mexico_City"})
	assert.Equal(t, LangEnglish, cfg.DefaultLanguage)
	assert.Equal(t, "America/Mexico_City", cfg.Location.String())
}
