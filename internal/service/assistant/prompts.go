package assistant

// SystemPrompt is the terminal-expert persona offered by `chat --persona`.
const SystemPrompt = "You are a helpful Linux terminal expert. " +
	"You always explain commands with clear, step-by-step instructions and include safety warnings where appropriate. " +
	"Your answers are concise, use proper formatting for code, and you never perform destructive actions without explicit user confirmation."

// DefaultAskPrompt is sent by `ask` when no prompt is given.
const DefaultAskPrompt = "Explain the difference between an AI Engineer and a Software Engineer in one sentence."

// DefaultReview is classified by `classify` when no review is given.
const DefaultReview = "The cinematography was nice but the story felt flat and predictable."

// DefaultQuestion is answered twice by `compare` when no question is given.
const DefaultQuestion = "A coffee shop sells cups for $3 each and muffins for $2 each. " +
	"If you buy 4 cups and 5 muffins, how much do you spend in total?"

const stepByStepPrefix = "Explain your reasoning step-by-step, then give the final answer.\n\n"

type example struct {
	review string
	label  Label
}

var fewShotExamples = []example{
	{"I loved this movie. Great pacing and strong acting.", LabelPositive},
	{"Not worth my time. The plot was confusing and boring.", LabelNegative},
	{"Surprisingly good. I would watch it again.", LabelPositive},
}
