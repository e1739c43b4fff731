package intentclassifier

import (
	"regexp"

	"clinic-dispatcher/internal/models"
)

// patternGroup is one capability's expressions. Each matching expression is
// one hit; hits scale confidence.
type patternGroup struct {
	capability models.Capability
	patterns   []*regexp.Regexp
}

func group(capability models.Capability, exprs ...string) patternGroup {
	g := patternGroup{capability: capability, patterns: make([]*regexp.Regexp, len(exprs))}
	for i, expr := range exprs {
		g.patterns[i] = regexp.MustCompile(expr)
	}
	return g
}

func (g patternGroup) hits(text string) int {
	n := 0
	for _, p := range g.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// Go's \b only understands ASCII word characters, so Russian and Hebrew
// patterns match on stems instead. Latin text is accent-folded first.
// Every table lists its groups in evaluation order: booking, availability, faq, price.
var defaultTables = map[string][]patternGroup{
	LangEnglish: {
		group(models.CapabilityBooking,
			`\b(book|reserve)\b`,
			`\bschedule (an? |my )?(appointment|visit|cleaning|checkup|consultation)\b`,
			`\b(make|set up|get) an? (appointment|booking)\b`,
			`\b(i'?ll take|i will take|lock in|sign me up)\b`,
			`\bconfirm\b`,
		),
		group(models.CapabilityAvailability,
			`\b(available|availability)\b`,
			`\b(free|open) (slots?|times?|spots?|appointments?)\b`,
			`\bopenings?\b`,
			`\bwhen can i (come|see|get)\b`,
			`\b(any|what) (slots?|times?|spots?)\b`,
		),
		group(models.CapabilityFAQ,
			`\b(opening )?hours\b`,
			`\bwhat time\b`,
			`\b(open|close|closing)\b`,
			`\b(where|address|located|location|directions|parking)\b`,
			`\b(insurance|payment|credit card|cash)\b`,
			`\bcancell?ation\b`,
			`\bdo you (accept|take|have|offer)\b`,
		),
		group(models.CapabilityPrice,
			`\bhow much\b`,
			`\b(price|prices|pricing|cost|costs|fee|fees|rates?|charge)\b`,
			`\bquote\b`,
			`\b(expensive|cheap|afford\w*)\b`,
		),
	},
	LangSpanish: {
		group(models.CapabilityBooking,
			`\b(reservar|reserva|reservame|agendar|agendame|apartar)\b`,
			`\b(quiero|quisiera|necesito|pedir) (una |hacer una |pedir una )?cita\b`,
			`\b(confirmo|confirmar|me quedo con)\b`,
		),
		group(models.CapabilityAvailability,
			`\b(disponible|disponibles|disponibilidad)\b`,
			`\b(horarios?|turnos?|huecos?|espacios?) (libres?|disponibles?)\b`,
			`\bhay (citas?|lugar|espacio|turnos?)\b`,
			`\bcuando (puedo|podria) (ir|pasar)\b`,
		),
		group(models.CapabilityFAQ,
			`\bhorarios?\b`,
			`\ba que hora (abren|cierran)\b`,
			`\b(abren|cierran|abierto)\b`,
			`\b(donde|direccion|ubicacion|ubicados|estacionamiento)\b`,
			`\b(seguros?|aceptan|formas? de pago|tarjeta)\b`,
		),
		group(models.CapabilityPrice,
			`\bcuanto (cuesta|cuestan|vale|valen|sale|cobran)\b`,
			`\b(precio|precios|costo|costos|tarifa|tarifas)\b`,
			`\bcuanto\b`,
		),
	},
	LangRussian: {
		group(models.CapabilityBooking,
			`записат|запиши`,
			`забронир|бронь`,
			`подтвер`,
		),
		group(models.CapabilityAvailability,
			`свободн`,
			`окошк|окно`,
			`есть ли (время|запись|места)`,
			`когда можно`,
		),
		group(models.CapabilityFAQ,
			`часы работы|график работы`,
			`во сколько (открыва|закрыва)`,
			`адрес|где (вы|находит)`,
			`страховк|оплат`,
		),
		group(models.CapabilityPrice,
			`сколько (стоит|будет стоить|стоят)`,
			`цен[аыу]|стоимост|прайс`,
		),
	},
	LangHebrew: {
		group(models.CapabilityBooking,
			`לקבוע`,
			`להזמין`,
			`קביעת תור`,
			`תרשום אותי|תקבע`,
		),
		group(models.CapabilityAvailability,
			`פנוי`,
			`זמינות|זמין`,
			`יש (תור|מקום)`,
			`מתי אפשר`,
		),
		group(models.CapabilityFAQ,
			`שעות (פתיחה|פעילות)`,
			`כתובת|איפה|מיקום`,
			`פתוחים|פתוח`,
			`ביטוח|תשלום|חניה`,
		),
		group(models.CapabilityPrice,
			`כמה (עולה|עולים|זה עולה)`,
			`מחיר|עלות`,
		),
	},
}

// stopwords are dropped when extracting the residual query; they include
// each language's question framing and price trigger words.
var stopwords = map[string]map[string]bool{
	LangEnglish: toSet(
		"what", "whats", "what's", "are", "your", "you", "is", "the", "a", "an", "do", "does", "how",
		"much", "for", "of", "to", "i", "me", "my", "we", "can", "could", "would", "please", "about",
		"there", "any", "it", "this", "that", "price", "prices", "pricing", "cost", "costs", "fee",
		"fees", "rate", "rates", "charge", "quote", "tell", "know", "want", "need", "get", "in", "on",
		"at", "with", "and", "or", "hi", "hello", "hey", "be", "have", "when", "where", "will",
	),
	LangSpanish: toSet(
		"que", "cual", "cuales", "es", "son", "el", "la", "los", "las", "un", "una", "unos", "unas",
		"de", "del", "por", "para", "en", "con", "y", "o", "su", "sus", "mi", "me", "quiero",
		"quisiera", "saber", "cuanto", "cuanta", "cuesta", "cuestan", "vale", "valen", "sale",
		"cobran", "precio", "precios", "costo", "costos", "tarifa", "tarifas", "hola", "favor",
		"tienen", "hay", "a", "al", "lo", "se", "usted", "ustedes",
	),
	LangRussian: toSet(
		"какая", "какой", "какие", "сколько", "стоит", "стоят", "будет", "цена", "цены", "стоимость",
		"у", "вас", "в", "на", "и", "а", "мне", "я", "по", "за", "это", "как", "что", "где", "когда",
		"прайс", "скажите", "пожалуйста",
	),
	LangHebrew: toSet(
		"כמה", "עולה", "עולים", "זה", "מחיר", "מחירים", "עלות", "של", "את", "מה", "יש", "לכם", "אני",
		"רוצה", "על", "אם", "בבקשה",
	),
}

type relativeDay struct {
	phrase string
	offset int
}

// relativeDays are checked in order; longer phrases that contain a shorter
// keyword come first.
var relativeDays = map[string][]relativeDay{
	LangEnglish: {{"day after tomorrow", 2}, {"today", 0}, {"tonight", 0}, {"tomorrow", 1}},
	LangSpanish: {{"pasado manana", 2}, {"hoy", 0}, {"manana", 1}},
	LangRussian: {{"послезавтра", 2}, {"сегодня", 0}, {"завтра", 1}},
	LangHebrew:  {{"מחרתיים", 2}, {"היום", 0}, {"מחר", 1}},
}

var (
	isoDatePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	clockPattern    = regexp.MustCompile(`(?:^|[^\d])(\d{1,2}):(\d{2})\s*(am|pm)?`)
	meridiemPattern = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
)
