package router

import (
	"errors"

	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
)

var errNoFallback = errors.New("no fallback strategy configured")

var apologies = map[string]string{
	intentclassifier.LangEnglish: "Sorry, I can't answer that right now. Please try again in a few minutes or call the clinic.",
	intentclassifier.LangSpanish: "Lo sentimos, no puedo responder en este momento. Inténtelo de nuevo en unos minutos o llame a la clínica.",
	intentclassifier.LangRussian: "Извините, сейчас я не могу ответить. Попробуйте через несколько минут или позвоните в клинику.",
	intentclassifier.LangHebrew:  "מצטערים, לא ניתן לענות כרגע. נסו שוב בעוד כמה דקות או התקשרו למרפאה.",
}

func apologyFor(lang string) string {
	if msg, ok := apologies[lang]; ok {
		return msg
	}
	return apologies[intentclassifier.LangEnglish]
}
