// Package safety screens user input before it reaches retrieval or the
// model. Screening happens in two stages: CheckInput blocks harmful
// content and prompt injection, CheckBoundary redirects questions that
// fall outside career coaching (legal, financial, medical).
//
// No filter is perfect. This catches common patterns but sophisticated
// attacks may bypass detection; the system prompt restates the coaching
// scope as a second layer.
package safety

import (
	"regexp"
)

// Rejection reasons returned by CheckInput.
const (
	ReasonHarmfulContent  = "harmful_content"
	ReasonPromptInjection = "prompt_injection"
)

// Off-topic categories returned by CheckBoundary.
const (
	CategoryLegal     = "legal"
	CategoryFinancial = "financial"
	CategoryMedical   = "medical"
)

// RejectionMessage is the fixed reply for input that fails CheckInput.
// It never echoes the rejected content back.
const RejectionMessage = "I apologize, but I can't process that request. " +
	"Let me know if you have questions about resumes, interviews, job search, or career growth!"

// Canned redirect replies per off-topic category.
var redirectMessages = map[string]string{
	CategoryLegal: "I appreciate you asking, but legal and immigration questions are outside my expertise. " +
		"I'd recommend consulting with an immigration attorney. However, I'd love to help you with your " +
		"resume, interview prep, or job search strategy!",
	CategoryFinancial: "That's an important question, but financial investment advice is outside my scope. " +
		"A financial advisor would be the best resource for that. Would you like help with career-related " +
		"topics like resume building or interview preparation instead?",
	CategoryMedical: "I understand that's important to you, but I'm not qualified to give medical or mental " +
		"health advice. Please reach out to a healthcare professional. Is there anything career-related I " +
		"can help you with?",
}

// InputResult is the outcome of the harmful-content and injection stage.
type InputResult struct {
	Safe   bool
	Reason string // set when Safe is false
}

// BoundaryResult is the outcome of the topic-boundary stage.
type BoundaryResult struct {
	WithinBounds bool
	Category     string // set when WithinBounds is false
	Redirect     string // canned reply for the category
}

type boundaryRule struct {
	category string
	pattern  *regexp.Regexp
}

// Gate screens chat input. Patterns are compiled once at construction;
// Gate is safe for concurrent use.
type Gate struct {
	harmful    []*regexp.Regexp
	injection  []*regexp.Regexp
	boundaries []boundaryRule
}

// NewGate creates a Gate with the default pattern sets.
func NewGate() *Gate {
	return &Gate{
		harmful: compileAll([]string{
			`(?i)\b(kill|murder|suicide|self.?harm|hate|racist|sexist)\b`,
			`(?i)\b(hack|exploit|steal|fraud|scam)\b`,
			`(?i)<script|javascript:|data:text/html`,
		}),
		injection: compileAll([]string{
			`(?i)ignore\s+(previous|all)\s+(instructions|prompts)`,
			`(?i)you\s+are\s+now\s+[a-z]+`,
			`(?i)pretend\s+(to\s+be|you're)`,
			`(?i)jailbreak`,
			`(?i)system\s*prompt`,
		}),
		// Checked in order; the first matching category wins.
		boundaries: []boundaryRule{
			{CategoryLegal, regexp.MustCompile(`(?i)\b(visa|immigration|green\s*card|h1b|work\s*permit|citizenship)\b`)},
			{CategoryFinancial, regexp.MustCompile(`(?i)\b(invest\w*|stock|crypto|bitcoin|trading|forex|401k)\b`)},
			{CategoryMedical, regexp.MustCompile(`(?i)\b(diagnos\w*|symptom\w*|medication|prescription|mental\s*health\s*disorder)\b`)},
		},
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// CheckInput screens for harmful content first, then prompt injection.
// Harmful content takes precedence when both would match.
func (g *Gate) CheckInput(input string) InputResult {
	normalized := normalizeInput(input)

	for _, re := range g.harmful {
		if re.MatchString(normalized) {
			return InputResult{Safe: false, Reason: ReasonHarmfulContent}
		}
	}
	for _, re := range g.injection {
		if re.MatchString(normalized) {
			return InputResult{Safe: false, Reason: ReasonPromptInjection}
		}
	}
	return InputResult{Safe: true}
}

// CheckBoundary screens for off-topic categories in fixed priority order
// (legal, financial, medical). Questions inside the coaching scope pass.
func (g *Gate) CheckBoundary(input string) BoundaryResult {
	normalized := normalizeInput(input)

	for _, rule := range g.boundaries {
		if rule.pattern.MatchString(normalized) {
			return BoundaryResult{
				WithinBounds: false,
				Category:     rule.category,
				Redirect:     redirectMessages[rule.category],
			}
		}
	}
	return BoundaryResult{WithinBounds: true}
}

// RedirectFor returns the canned reply for an off-topic category.
// Unknown categories fall back to the generic rejection message.
func RedirectFor(category string) string {
	if msg, ok := redirectMessages[category]; ok {
		return msg
	}
	return RejectionMessage
}
