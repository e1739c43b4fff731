package router

import (
	"strings"
	"unicode"

	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
)

// FastIntent is one of the template-answerable intents handled before classification.
type FastIntent string

const (
	FastGreeting FastIntent = "greeting"
	FastThanks   FastIntent = "thanks"
	FastGoodbye  FastIntent = "goodbye"
)

const (
	exactConfidence  = 0.95
	prefixConfidence = 0.85
	maxPrefixTokens  = 4
)

// FastMatch is the coarse keyword router's verdict.
type FastMatch struct {
	Intent     FastIntent
	Language   string
	Confidence float64
}

type FastPath struct {
	phrases   map[string]map[FastIntent][]string
	templates map[string]map[FastIntent]string
	fallback  string
}

func NewFastPath(defaultLanguage string) *FastPath {
	if defaultLanguage == "" {
		defaultLanguage = intentclassifier.LangEnglish
	}
	return &FastPath{
		phrases:   fastPhrases,
		templates: fastTemplates,
		fallback:  defaultLanguage,
	}
}

// Match returns a zero FastMatch when nothing applies. An exact phrase scores
// 0.95; a short message that opens with a phrase scores 0.85.
func (f *FastPath) Match(text string) FastMatch {
	lang := intentclassifier.DetectLanguage(text, f.fallback)
	normalized := intentclassifier.Normalize(text, lang)
	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(tokens) == 0 {
		return FastMatch{}
	}
	joined := strings.Join(tokens, " ")

	var best FastMatch
	for intent, phrases := range f.phrases[lang] {
		for _, p := range phrases {
			switch {
			case joined == p:
				return FastMatch{Intent: intent, Language: lang, Confidence: exactConfidence}
			case len(tokens) <= maxPrefixTokens && strings.HasPrefix(joined, p+" ") && best.Confidence < prefixConfidence:
				best = FastMatch{Intent: intent, Language: lang, Confidence: prefixConfidence}
			}
		}
	}
	return best
}

// Template returns the canned reply for a matched intent.
func (f *FastPath) Template(m FastMatch) string {
	if t, ok := f.templates[m.Language][m.Intent]; ok {
		return t
	}
	return f.templates[intentclassifier.LangEnglish][m.Intent]
}

var fastPhrases = map[string]map[FastIntent][]string{
	intentclassifier.LangEnglish: {
		FastGreeting: {"hi", "hello", "hey", "hi there", "hello there", "good morning", "good afternoon", "good evening"},
		FastThanks:   {"thanks", "thank you", "thank you so much", "thanks a lot", "thx", "ty"},
		FastGoodbye:  {"bye", "goodbye", "bye bye", "see you", "see you later", "have a nice day"},
	},
	intentclassifier.LangSpanish: {
		FastGreeting: {"hola", "buenos dias", "buenas tardes", "buenas noches", "buenas"},
		FastThanks:   {"gracias", "muchas gracias", "mil gracias"},
		FastGoodbye:  {"adios", "chao", "hasta luego", "hasta pronto", "nos vemos"},
	},
	intentclassifier.LangRussian: {
		FastGreeting: {"привет", "здравствуйте", "добрый день", "доброе утро", "добрый вечер"},
		FastThanks:   {"спасибо", "спасибо большое", "благодарю"},
		FastGoodbye:  {"пока", "до свидания", "всего доброго"},
	},
	intentclassifier.LangHebrew: {
		FastGreeting: {"שלום", "היי", "בוקר טוב", "ערב טוב", "צהריים טובים"},
		FastThanks:   {"תודה", "תודה רבה"},
		FastGoodbye:  {"להתראות", "ביי", "יום טוב"},
	},
}

var fastTemplates = map[string]map[FastIntent]string{
	intentclassifier.LangEnglish: {
		FastGreeting: "Hello! How can I help you today? You can ask about our services, prices or available appointments.",
		FastThanks:   "You're welcome! Is there anything else I can help with?",
		FastGoodbye:  "Goodbye, and have a great day!",
	},
	intentclassifier.LangSpanish: {
		FastGreeting: "¡Hola! ¿En qué puedo ayudarle hoy? Puede preguntar por nuestros servicios, precios o citas disponibles.",
		FastThanks:   "¡De nada! ¿Hay algo más en lo que pueda ayudarle?",
		FastGoodbye:  "¡Hasta luego, que tenga un buen día!",
	},
	intentclassifier.LangRussian: {
		FastGreeting: "Здравствуйте! Чем могу помочь? Вы можете спросить об услугах, ценах или свободном времени для записи.",
		FastThanks:   "Пожалуйста! Могу ли я помочь чем-то ещё?",
		FastGoodbye:  "До свидания, хорошего дня!",
	},
	intentclassifier.LangHebrew: {
		FastGreeting: "שלום! איך אפשר לעזור? אפשר לשאול על השירותים, המחירים או תורים פנויים.",
		FastThanks:   "בשמחה! יש עוד משהו שאפשר לעזור בו?",
		FastGoodbye:  "להתראות, יום נעים!",
	},
}
