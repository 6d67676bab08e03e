package answer

import (
	"fmt"
	"strings"

	"github.com/notewell/notewell/internal/ollama"
)

const answerSystemPrompt = "You are a helpful study assistant that answers questions based on " +
	"personal notes. Be aware of different subjects and provide subject-specific responses " +
	"when appropriate. Be concise and accurate."

func answerPrompt(question, inventory, context string) []ollama.Message {
	if inventory == "" {
		inventory = "No specific subjects identified"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are a helpful assistant that answers questions based on the user's personal study notes. You have access to notes from multiple subjects and should be aware of the subject context.

AVAILABLE SUBJECTS IN NOTES:
%s

RELEVANT NOTES FOUND:
%s

USER QUESTION: %s

INSTRUCTIONS:
1. If the question asks about a specific subject, focus on notes from that subject
2. If multiple subjects are relevant, mention which subjects contain relevant information
3. Provide specific references to note titles when possible
4. If the context doesn't contain enough information to answer the question, say so clearly
5. Keep your response concise but informative
6. When mentioning information, indicate which subject/note it comes from

Answer:`, inventory, context, question)

	return []ollama.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func titlePrompt(question string) []ollama.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Generate a short, descriptive title (max 6 words) for a chat conversation that starts with this question: "%s"

The title should capture the main topic or subject being asked about. Do not include quotes or extra formatting.

Examples:
- "What is photosynthesis?" → "Photosynthesis Questions"
- "Help me understand calculus derivatives" → "Calculus Derivatives Help"
- "Explain quantum physics concepts" → "Quantum Physics Concepts"

Question: %s
Title:`, question, question)

	return []ollama.Message{{Role: "user", Content: sb.String()}}
}
