package workflows

import (
	"strings"
	"unicode/utf8"
)

// MaxTranscriptRunes is how much transcript is sent to the model.
const MaxTranscriptRunes = 3000

const transcriptPlaceholder = "{TRANSCRIPT}"

const titlePrompt = `Your task is to generate an SEO-focused title for a YouTube video based on its transcript. Please follow these guidelines:
- Be concise but descriptive, using relevant keywords to improve discoverability.
- Highlight the most compelling or unique aspect of the video content.
- Avoid jargon or overly complex language unless it directly supports searchability.
- Use action-oriented phrasing or clear value propositions where applicable.
- Ensure the title is 3-8 words long and no more than 100 characters.
- ONLY return the title as plain text. Do not add quotes or any additional formatting.

Transcript: {TRANSCRIPT}
`

const descriptionPrompt = `Your task is to summarize the transcript of a video. Please follow these guidelines:
- Be brief. Condense the content into a summary that captures the key points and main ideas without losing important details.
- Avoid jargon or overly complex language unless necessary for the context.
- Focus on the most critical information, ignoring filler, repetitive statements, or irrelevant tangents.
- ONLY return the summary, no other text, annotations, or comments.
- Aim for a summary that is 3-5 sentences long and no more than 200 characters.

Transcript: {TRANSCRIPT}
`

// BuildPrompt fills template with the leading MaxTranscriptRunes of transcript.
func BuildPrompt(template, transcript string) string {
	return strings.Replace(template, transcriptPlaceholder, truncateRunes(transcript, MaxTranscriptRunes), 1)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
