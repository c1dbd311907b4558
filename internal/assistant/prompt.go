package assistant

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const instructions = `Instructions:
1. Use the study data to give personalized advice if relevant.
2. Be encouraging, concise, and helpful.
3. Use the "Current date" above for anything relative to today, tomorrow or next week. Never guess the date.
4. AUTO-ACTION: only if the user EXPLICITLY asks to create a task, add a subject, or set a goal, end your response with exactly one JSON object wrapped in triple pipes, like this:
   |||{"action": "create_task", "data": {"title": "Task Name", "deadline": "YYYY-MM-DD", "priority": "medium"}}|||
   Supported actions: "create_task", "add_subject", "set_goal".
   For "create_task" required: title. optional: deadline (YYYY-MM-DD), priority (low, medium, high).
   For "add_subject" required: name.
   For "set_goal" required: title, target (number), unit. optional: type (daily, weekly, monthly; default daily).
   Leave out optional fields the user did not give. Do not invent deadlines.
5. If no action is needed, just reply normally and do not use triple pipes.
`

// BuildPrompt renders the full completion prompt for one question.
func BuildPrompt(userName string, now time.Time, snap Snapshot, question string) string {
	now = now.UTC()

	var b strings.Builder

	b.WriteString(`You are "StudyFlow AI", a personal study assistant for `)
	b.WriteString(userName)
	b.WriteString(".\n\n")

	b.WriteString("Current date: ")
	b.WriteString(now.Format(dateLayout))
	b.WriteString(" (")
	b.WriteString(now.Weekday().String())
	b.WriteString(")\n\n")

	b.WriteString("Here is the user's current study data:\n")
	b.WriteString("- Name: ")
	b.WriteString(userName)
	b.WriteString("\n")
	b.WriteString(snap.Render())
	b.WriteString("\n")

	b.WriteString(`User's Question: "`)
	b.WriteString(question)
	b.WriteString("\"\n\n")

	b.WriteString(instructions)
	return b.String()
}

const quizInstructions = `Return strictly a JSON array without any markdown formatting.
Structure:
[
  {
    "question": "Question text?",
    "options": ["A", "B", "C", "D"],
    "correctAnswer": 0
  }
]
correctAnswer is the index (0-3) of the correct option.
`

// BuildQuizPrompt asks for a five question multiple choice quiz.
func BuildQuizPrompt(topic string) string {
	var b strings.Builder
	b.WriteString(`Generate a 5-question multiple choice quiz about "`)
	b.WriteString(topic)
	b.WriteString("\". Every question has exactly 4 options.\n")
	b.WriteString(quizInstructions)
	return b.String()
}
