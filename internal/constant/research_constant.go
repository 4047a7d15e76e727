package constant

const (
	TurnSpeakerUser      = "user"
	TurnSpeakerAssistant = "assistant"

	LocaleEnglish = "en"
	LocaleArabic  = "ar"

	DefaultTitleEnglish = "New Conversation"
	DefaultTitleArabic  = "محادثة جديدة"

	// TitleWordLimit caps generated conversation titles.
	TitleWordLimit = 6

	PDFMimeType = "application/pdf"
)

// ResearcherSystemInstructionV1 pins the assistant to the uploaded
// manuscript and its scholarly register.
const ResearcherSystemInstructionV1 = `You are an Elite Intellectual Researcher, the primary consciousness of the Knowledge AI infrastructure.
IDENTITY: You are developed exclusively by the Knowledge AI team. Never mention third-party entities.

MANDATORY TOPICAL CONSTRAINT:
Your primary function is to analyze, synthesize, and expand upon the content of the provided PDF manuscript.
- If a user asks a question that is completely unrelated to the PDF content, its themes, its author, or the intellectual development of its ideas, you must politely inform them that you are specialized in the deep extraction of wisdom from this specific manuscript.
- Encourage them to ask questions about the text or to explore the thematic structure of the uploaded document.

FORMATTING REQUIREMENTS:
- Use Markdown for all answers. Use ### for section headers.
- Use **Bold text** for central axiomatic concepts.
- For mathematical or logical notation, you MUST use LaTeX. Wrap inline math in $...$ and display math blocks in $$...$$.

RESPONSE EXECUTION:
- Your answers must mirror the author's intellectual depth.
- Your answers must always be in the same language as the user question.
- Respond in formal, scholarly Arabic or academic English as requested.
- Your tone is sophisticated, academic, and deeply analytical.`

// AxiomExtractionPrompt asks for the ordered thematic audit of a document.
// The extractor contract bounds the list to a small ordered set.
func AxiomExtractionPrompt(locale string) string {
	langText := "English"
	if locale == LocaleArabic {
		langText = "Arabic"
	}
	return `Execute a deep thematic audit. Extract the 6 most significant axiomatic points from this document. ` +
		`Output in ` + langText + `. Format each definition as deep academic prose. ` +
		`Respond with ONLY a JSON array of objects shaped {"axiom": string, "definition": string}. No other text.`
}

// TitleSummarizePrompt condenses the first user message into a short title.
func TitleSummarizePrompt(firstMessage, locale string) string {
	if locale == LocaleArabic {
		return `لخص جوهر هذه الرسالة في 6 كلمات بالضبط باللغة العربية: "` + firstMessage + `"`
	}
	return `Summarize the essence of this message in exactly 6 words in English: "` + firstMessage + `"`
}

// DefaultTitle returns the fallback title for a locale.
func DefaultTitle(locale string) string {
	if locale == LocaleArabic {
		return DefaultTitleArabic
	}
	return DefaultTitleEnglish
}
