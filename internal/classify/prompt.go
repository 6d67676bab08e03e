package classify

import (
	"fmt"
	"strings"

	"github.com/notewell/notewell/internal/ollama"
)

// singleInputLimit bounds how much text is sent for single-label
// classification; more hurts latency without improving the label.
const singleInputLimit = 1000

const keywordInputLimit = 1500

func segmentPrompt(text string, vocabulary []string) []ollama.Message {
	subjects := strings.Join(vocabulary, ", ")

	var sb strings.Builder
	fmt.Fprintf(&sb, `Analyze the following text extracted from notes. Determine if it contains content related to multiple subjects or just one subject.

Available subjects (use EXACTLY these names): %s

Text to analyze:
%s

Instructions:
1. If the text relates to only ONE subject:
   - Return a single entry with the EXACT subject name from the list above
   - Use the entire text as content
   - Generate a descriptive title WITHOUT including the subject name

2. If the text relates to MULTIPLE subjects:
   - Split the text into separate sections for each subject
   - Use EXACTLY the subject names from this list: %s
   - Each section should contain only content relevant to that subject
   - Generate appropriate titles for each section WITHOUT subject names
   - Preserve all original content (don't lose any information)

3. If no subject matches well, use "General" as the subject

4. CRITICAL: Only use these exact subject names: %s or "General"

IMPORTANT: Return ONLY valid JSON in this EXACT format. Do not include any explanations, prefixes, or additional text:

[
    {"subject": "EXACT_SUBJECT_NAME_FROM_LIST", "title": "Descriptive Title", "content": "Relevant content for this subject"}
]`, subjects, text, subjects, subjects)

	return []ollama.Message{{Role: "user", Content: sb.String()}}
}

func singlePrompt(text string, vocabulary []string) []ollama.Message {
	subjects := strings.Join(vocabulary, ", ")

	var sb strings.Builder
	fmt.Fprintf(&sb, `Given the following text extracted from notes, classify it into one of these EXACT subjects: %s

Text to classify:
%s

Instructions:
- Return ONLY one of these EXACT subject names: %s
- Match the text content to the most relevant subject
- Consider technical terms, topics, and context
- If multiple subjects could apply, choose the most dominant one
- If no subject matches well, return "NONE"
- Do not add any explanation or extra text

Subject:`, subjects, truncateInput(text, singleInputLimit), subjects)

	return []ollama.Message{{Role: "user", Content: sb.String()}}
}

func keywordPrompt(text string) []ollama.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Extract the main keywords and topics from this text. Focus on:
- Subject-specific terms
- Important concepts
- Key topics
- Technical terms

Text:
%s

Return only a comma-separated list of keywords (maximum 10):`, truncateInput(text, keywordInputLimit))

	return []ollama.Message{{Role: "user", Content: sb.String()}}
}

func truncateInput(text string, limit int) string {
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
