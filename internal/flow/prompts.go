package flow

// Fixed user-facing messages. The interface language is Ukrainian.
const (
	// MsgGreeting opens the flow and asks for the passport photo.
	MsgGreeting = "Привіт! Я — бот для покупки автострахування.\nНадішліть, будь ласка, фото вашого паспорта.\n\nЯкщо помилилися — введіть /cancel."
	// MsgAskCarDoc asks for the vehicle document after the passport is accepted.
	MsgAskCarDoc = "Дякую! Тепер, будь ласка, надішліть фото документа на авто."
	// MsgPhotoReprompt is the fixed re-prompt for non-question text where a photo is expected.
	MsgPhotoReprompt = "Я очікую фото. Будь ласка, надішліть фото, як було запрошено."
	// MsgResubmitPassport restarts photo collection after the user rejects the extracted data.
	MsgResubmitPassport = "Окей, надішліть, будь ласка, фото паспорта ще раз."
	// MsgPriceOffer presents the fixed price; takes the price in USD.
	MsgPriceOffer = "Ціна страховки становить %d USD. Приймаєте?"
	// MsgPriceFixed is the non-negotiable-price notice; takes the price in USD.
	MsgPriceFixed = "Вибачте, але на жаль, ціна фіксована (%d USD). Згодні?"
	// MsgReconfirmReask re-asks the binary question after a fallback reply; takes the price in USD.
	MsgReconfirmReask = "То що, оформлюємо поліс за %d USD? (Так/Ні)"
	// MsgDataSummary presents the extracted fields for confirmation; takes the
	// five field values in document order.
	MsgDataSummary = "Ось що я знайшов:\n👤 Ім'я: %s\n📄 Паспорт: %s\n🚗 Авто: %s %s\n🔧 VIN: %s\n\nВсе правильно?"
	// MsgPolicyCreated precedes the rendered policy document.
	MsgPolicyCreated = "✅ Страховий поліс створено. Ось ваш документ:"
	// MsgOfferAnother offers to run the flow again after issuance.
	MsgOfferAnother = "Бажаєте створити ще один страховий поліс?"
	// MsgFarewellDecline closes the conversation when the user walks away from the price.
	MsgFarewellDecline = "Добре. Сподіваюся побачити вас наступного разу!"
	// MsgFarewellThanks closes the conversation after a thank-you.
	MsgFarewellThanks = "Дякую за використання бота! До зустрічі."
	// MsgCancelled confirms /cancel.
	MsgCancelled = "Скасовано. Для початку введіть /start"
	// MsgStartHint nudges users who message the bot outside an active conversation.
	MsgStartHint = "Введіть /start, щоб почати оформлення автострахування."
)

// Reply keyboards paired with prompts.
var (
	KeyboardYesNo       = []string{"Так", "Ні"}
	KeyboardAfterPolicy = []string{"Дякую", "Створити ще один поліс"}
)

// System prompts for the three completion fallback call sites. Price-aware
// prompts take the price in USD.
const (
	unexpectedInputSystemPrompt = "Ти — асистент Telegram-бота з оформлення автострахування. " +
		"Користувач зараз має надіслати фото документа, але натомість поставив запитання. " +
		"Коротко і ввічливо відповідай українською та попроси надіслати потрібне фото."

	priceObjectionSystemPrompt = "Ти — асистент Telegram-бота з оформлення автострахування. " +
		"Ціна поліса фіксована — %d USD, знижок немає. " +
		"Ввічливо поясни українською, чому ціна саме така, і запропонуй підтвердити покупку."

	reconfirmSystemPrompt = "Ти — асистент Telegram-бота з оформлення автострахування. " +
		"Користувач вагається щодо фіксованої ціни %d USD. " +
		"Відповідай на його репліку українською, м'яко повертаючи розмову до відповіді Так або Ні."
)

// Canned fallback replies used when the completion collaborator fails.
const (
	// FallbackUnexpectedInput degrades the unexpected-input explainer.
	FallbackUnexpectedInput = "Вибачте, зараз я можу відповісти лише після фото документа. Будь ласка, надішліть фото."
	// FallbackPriceObjection degrades the price-objection explainer.
	FallbackPriceObjection = "Вибачте, але ціна фіксована. Це стандартний тариф для всіх клієнтів."
	// FallbackReconfirm degrades the reconfirmation explainer.
	FallbackReconfirm = "Вибачте, я вас не зрозумів. Ціна фіксована — відповідайте, будь ласка, Так або Ні."
)
