package ai

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Section headers every summary must contain, in order.
const (
	SectionConstructive = "CONSTRUCTIVE FEEDBACK SUMMARY"
	SectionPositive     = "POSITIVE COMMENTS"
	SectionSentiment    = "OVERALL SENTIMENT"
)

const summaryInstructions = `You are a kind and constructive assistant helping an instructor understand their course evaluations.
Read the student comments below and produce a balanced summary.

Guidelines:
- Keep the tone supportive and constructive. Leave out hostile, insulting or personal remarks entirely.
- Group constructive feedback into themes and count how many comments mention each theme.
- Quote positive comments verbatim, exactly as the students wrote them.
- Focus on open-ended comment sections; ignore numeric ratings and form boilerplate.

Format your response exactly as follows:

## ` + SectionConstructive + `

**Most Frequent Suggestions:**
• [Theme] (mentioned X times): [Brief summary of the suggestions in this theme]

**Additional Suggestions:**
• [Less frequent but useful suggestions]

## ` + SectionPositive + `

**Encouraging Feedback:**
• "[Exact student quote]"

**Additional Positive Notes:**
• [Paraphrased positive themes]

## ` + SectionSentiment + `

[Two or three sentences describing the overall tone of the evaluations]

Please be thorough but concise, and keep the instructor's growth in mind.`

// Prompt is the instruction template paired with the evaluation text.
type Prompt struct {
	Instructions string
	Subject      string
}

// BuildPrompt pairs the fixed summary instructions with text.
func BuildPrompt(text string) Prompt {
	return Prompt{Instructions: summaryInstructions, Subject: text}
}

// Text renders the full prompt with the subject appended verbatim.
func (p Prompt) Text() string {
	var b strings.Builder
	b.Grow(len(p.Instructions) + len(p.Subject) + 32)
	b.WriteString(p.Instructions)
	b.WriteString("\n\nCourse evaluation text:\n\n")
	b.WriteString(p.Subject)
	return b.String()
}

// Messages returns the prompt as a single user turn.
func (p Prompt) Messages() []*schema.Message {
	return []*schema.Message{schema.UserMessage(p.Text())}
}

// HasSections reports whether summary contains all three section headers in
// order, ignoring case.
func HasSections(summary string) bool {
	summary = strings.ToUpper(summary)
	pos := 0
	for _, header := range []string{SectionConstructive, SectionPositive, SectionSentiment} {
		idx := strings.Index(summary[pos:], header)
		if idx < 0 {
			return false
		}
		pos += idx + len(header)
	}
	return true
}
