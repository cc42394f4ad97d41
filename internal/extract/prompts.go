package extract

const receiptPrompt = "Extract normalized expense fields from this receipt image.\n" +
	"Return strictly valid JSON per the response schema. Omit fields you " +
	"cannot determine; never invent values."

const textPrompt = "Parse this free-form expense message into normalized " +
	"expense fields per the response schema.\n" +
	"Infer a sensible category; use an ISO 8601 datetime if one can be " +
	"determined. Omit fields you cannot determine.\n\nTEXT:\n"
