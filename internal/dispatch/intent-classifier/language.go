package intentclassifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	LangEnglish = "en"
	LangSpanish = "es"
	LangRussian = "ru"
	LangHebrew  = "he"
)

const spanishMarks = "¿¡ñáéíóúü"

var spanishWords = toSet(
	"que", "cuanto", "cuanta", "cuesta", "cuestan", "precio", "hola", "gracias", "cita", "hoy",
	"manana", "para", "una", "por", "favor", "tienen", "quiero", "quisiera", "reservar", "horario",
	"donde", "esta", "estan", "los", "las", "del", "buenos", "dias", "hay", "necesito", "limpieza",
	"cuando", "puedo", "usted", "ustedes",
)

var englishWords = toSet(
	"the", "is", "are", "what", "how", "much", "your", "you", "do", "does", "i", "to", "for", "can",
	"book", "price", "hours", "have", "my", "when", "tomorrow", "today", "hi", "hello", "thanks",
	"appointment", "available", "open", "cost", "please", "any",
)

// DetectLanguage picks a language from the dominant script. Latin text is
// Spanish when it carries Spanish punctuation or letters, or when Spanish
// marker words outnumber English ones.
func DetectLanguage(text, fallback string) string {
	var cyrillic, hebrew, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	switch {
	case cyrillic == 0 && hebrew == 0 && latin == 0:
		return fallback
	case cyrillic >= hebrew && cyrillic >= latin:
		return LangRussian
	case hebrew >= latin:
		return LangHebrew
	}

	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, spanishMarks) {
		return LangSpanish
	}

	var es, en int
	for _, tok := range tokenize(fold(lower)) {
		if spanishWords[tok] {
			es++
		}
		if englishWords[tok] {
			en++
		}
	}
	if es > en {
		return LangSpanish
	}
	return LangEnglish
}

// Normalize lowercases text and, for Latin-script languages, strips diacritics
// so patterns can be written without accents.
func Normalize(text, lang string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lang == LangEnglish || lang == LangSpanish {
		return fold(lower)
	}
	return lower
}

func fold(s string) string {
	// transform.Chain is stateful; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func toSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}
