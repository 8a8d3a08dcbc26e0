package evaluation

import (
	"fmt"
	"strings"
)

func buildRubricPrompt(persona, styleHint string, tc TestCase, response string) string {
	var b strings.Builder

	b.WriteString("Evaluate this AI teacher's response on a scale of 1-10.\n\n")
	b.WriteString(fmt.Sprintf("Question: %s\n\n", tc.Question))
	b.WriteString(fmt.Sprintf("Response: %s\n\n", response))
	b.WriteString(fmt.Sprintf("Expected topics to cover: %s\n\n", tc.ExpectedTopics))

	b.WriteString("Evaluate based on:\n")
	b.WriteString("1. Accuracy (1-10): Are the concepts explained correctly?\n")
	b.WriteString("2. Completeness (1-10): Does it cover the expected topics?\n")
	b.WriteString(fmt.Sprintf("3. Teaching Style (1-10): Does it match %s's style (%s)?\n", persona, styleHint))
	b.WriteString("4. Clarity (1-10): Is the explanation clear and easy to understand?\n")
	b.WriteString("5. Engagement (1-10): Is it engaging and encouraging?\n\n")

	b.WriteString("Return ONLY a JSON object with integer scores:\n")
	b.WriteString(`{"accuracy": X, "completeness": X, "teaching_style": X, "clarity": X, "engagement": X}`)
	b.WriteString("\n")

	return b.String()
}

func buildRAGCheckPrompt(tc TestCase, response string) string {
	var b strings.Builder

	b.WriteString("Does this response use specific information from lecture content, or is it generic knowledge?\n\n")
	b.WriteString(fmt.Sprintf("Question: %s\n", tc.Question))
	b.WriteString(fmt.Sprintf("Response: %s\n\n", response))
	b.WriteString("Answer with ONLY a JSON object:\n")
	b.WriteString(`{"uses_lecture_context": true/false, "confidence": 0-10}`)
	b.WriteString("\n")

	return b.String()
}
