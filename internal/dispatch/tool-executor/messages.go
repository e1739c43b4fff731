package toolexecutor

import "fmt"

const (
	msgGreeting         = "greeting"
	msgFAQNotFound      = "faq_not_found"
	msgPriceNotFound    = "price_not_found"
	msgPriceWhich       = "price_which"
	msgPriceHeader      = "price_header"
	msgPriceContact     = "price_contact"
	msgDateMissing      = "date_missing"
	msgSlotsNone        = "slots_none"
	msgSlotsHeader      = "slots_header"
	msgSlotsCTA         = "slots_cta"
	msgSlotMissing      = "slot_missing"
	msgBookingConfirmed = "booking_confirmed"
	msgBookingFailed    = "booking_failed"
)

var replies = map[string]map[string]string{
	"en": {
		msgGreeting:         "Hi %s!",
		msgFAQNotFound:      "I couldn't find an answer to that. Would you like to talk to a person?",
		msgPriceNotFound:    "I couldn't find a service matching %q. Could you rephrase or name the treatment?",
		msgPriceWhich:       "Which service would you like a price for?",
		msgPriceHeader:      "Here is what I found:",
		msgPriceContact:     "contact us for pricing",
		msgDateMissing:      "Which day would you like to come in?",
		msgSlotsNone:        "There are no open slots on %s. Would %s work instead?",
		msgSlotsHeader:      "Open slots on %s:",
		msgSlotsCTA:         "Reply with the number of the slot you'd like.",
		msgSlotMissing:      "Please pick one of the offered slots first.",
		msgBookingConfirmed: "You're booked for %s. See you then!",
		msgBookingFailed:    "I couldn't confirm that appointment. Please try another slot.",
	},
	"es": {
		msgGreeting:         "¡Hola %s!",
		msgFAQNotFound:      "No encontré una respuesta a eso. ¿Quiere hablar con una persona?",
		msgPriceNotFound:    "No encontré un servicio que coincida con %q. ¿Puede reformular o nombrar el tratamiento?",
		msgPriceWhich:       "¿De qué servicio quiere saber el precio?",
		msgPriceHeader:      "Esto es lo que encontré:",
		msgPriceContact:     "consúltenos el precio",
		msgDateMissing:      "¿Qué día le gustaría venir?",
		msgSlotsNone:        "No hay horarios libres el %s. ¿Le sirve el %s?",
		msgSlotsHeader:      "Horarios libres el %s:",
		msgSlotsCTA:         "Responda con el número del horario que prefiera.",
		msgSlotMissing:      "Primero elija uno de los horarios ofrecidos.",
		msgBookingConfirmed: "Su cita quedó reservada para el %s. ¡Hasta pronto!",
		msgBookingFailed:    "No pude confirmar esa cita. Por favor elija otro horario.",
	},
	"ru": {
		msgGreeting:         "Здравствуйте, %s!",
		msgFAQNotFound:      "Я не нашёл ответа на этот вопрос. Хотите поговорить с администратором?",
		msgPriceNotFound:    "Не нашёл услугу по запросу %q. Уточните, пожалуйста, название процедуры.",
		msgPriceWhich:       "Стоимость какой услуги вас интересует?",
		msgPriceHeader:      "Вот что я нашёл:",
		msgPriceContact:     "уточняйте стоимость у администратора",
		msgDateMissing:      "На какой день вы хотите записаться?",
		msgSlotsNone:        "На %s свободного времени нет. Подойдёт %s?",
		msgSlotsHeader:      "Свободное время на %s:",
		msgSlotsCTA:         "Ответьте номером подходящего времени.",
		msgSlotMissing:      "Сначала выберите одно из предложенных времён.",
		msgBookingConfirmed: "Вы записаны на %s. Ждём вас!",
		msgBookingFailed:    "Не удалось подтвердить запись. Пожалуйста, выберите другое время.",
	},
	"he": {
		msgGreeting:         "שלום %s!",
		msgFAQNotFound:      "לא מצאתי תשובה לשאלה הזו. תרצה לדבר עם נציג?",
		msgPriceNotFound:    "לא מצאתי שירות שמתאים ל-%q. אפשר לנסח מחדש או לציין את הטיפול?",
		msgPriceWhich:       "על איזה שירות תרצה לדעת את המחיר?",
		msgPriceHeader:      "זה מה שמצאתי:",
		msgPriceContact:     "צרו קשר לקבלת מחיר",
		msgDateMissing:      "באיזה יום תרצה להגיע?",
		msgSlotsNone:        "אין תורים פנויים ב-%s. האם %s מתאים?",
		msgSlotsHeader:      "תורים פנויים ב-%s:",
		msgSlotsCTA:         "השב עם מספר התור המועדף.",
		msgSlotMissing:      "יש לבחור קודם אחד מהתורים שהוצעו.",
		msgBookingConfirmed: "נקבע לך תור ל-%s. נתראה!",
		msgBookingFailed:    "לא הצלחתי לאשר את התור. נא לבחור תור אחר.",
	},
}

// reply renders key in lang, falling back to English.
func reply(lang, key string, args ...interface{}) string {
	table, ok := replies[lang]
	if !ok {
		table = replies["en"]
	}
	tmpl, ok := table[key]
	if !ok {
		tmpl = replies["en"][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
