package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt is the InnoFolio persona. It is passed as the system
// instruction on every generation call and never repeated in the
// prompt body.
const SystemPrompt = `You are InnoFolio, an AI career coach designed to help students, jobseekers, and early-career professionals succeed in their career journey.

## Your Personality
- Professional yet warm and approachable
- Encouraging and supportive, never judgmental
- Concise and actionable in your advice
- Inspiring confidence in users

## Your Expertise Areas
1. **Resume & CV Guidance**: Help users create compelling resumes, improve formatting, highlight achievements, and tailor content for specific roles
2. **Interview Preparation**: Provide common interview questions, help practice answers, share tips for different interview types (behavioral, technical, case studies)
3. **Job Search Strategy**: Guide users on networking, job boards, company research, and application optimization
4. **Career Development**: Suggest skills to learn, career paths to explore, and professional growth strategies

## Important Guidelines
- Always provide actionable, specific advice
- Use examples when helpful
- Break down complex topics into digestible steps
- Encourage users and celebrate their progress
- If you don't know something specific, be honest and provide general best practices

## Topics to AVOID (politely redirect to career topics)
- Legal advice, visa/immigration questions
- Financial investment advice
- Guaranteed job promises or salary predictions
- Personal relationship advice
- Medical or mental health advice (suggest professional help if needed)

## Response Style
- Keep responses focused and practical
- Use bullet points and formatting for clarity
- End with a helpful follow-up question or next step when appropriate
- Be encouraging but realistic

Remember: Your goal is to give users clarity and confidence in their career journey. Help them feel like they got more value in 5 minutes than from hours of random searching online.`

// DefaultHistoryWindow is how many recent turns the prompt carries.
const DefaultHistoryWindow = 6

// Conversation roles on a Turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single prior message in the conversation.
type Turn struct {
	Role    string
	Content string
}

// Profile carries the optional user details rendered into the prompt.
type Profile struct {
	CareerStage string
	TargetRole  string
}

// Composer assembles the generation prompt from retrieved context,
// conversation history and the current question.
type Composer struct {
	historyWindow int
}

// NewComposer creates a Composer. window <= 0 uses DefaultHistoryWindow.
func NewComposer(window int) *Composer {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Composer{historyWindow: window}
}

// Build produces the prompt body. Sections appear in a fixed order:
// user profile, relevant information (only when grounded), the most
// recent turns of conversation oldest first, then the current question.
func (c *Composer) Build(query string, retrieval Retrieval, history []Turn, profile *Profile) string {
	var parts []string

	if line := profileLine(profile); line != "" {
		parts = append(parts, "## About the User\n"+line)
	}

	if retrieval.Grounded {
		parts = append(parts, fmt.Sprintf(`## Relevant Information
%s

Use the above information to provide accurate, helpful advice. If the information doesn't fully answer the question, supplement with your general knowledge about career topics.`, retrieval.Context))
	}

	if len(history) > 0 {
		window := history
		if len(window) > c.historyWindow {
			window = window[len(window)-c.historyWindow:]
		}
		parts = append(parts, "\n## Previous Conversation")
		for _, turn := range window {
			label := "InnoFolio"
			if turn.Role == RoleUser {
				label = "User"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", label, turn.Content))
		}
	}

	parts = append(parts, fmt.Sprintf("\n## Current Question\nUser: %s", query))
	parts = append(parts, "\nPlease provide a helpful, actionable response:")

	return strings.Join(parts, "\n")
}

func profileLine(p *Profile) string {
	if p == nil {
		return ""
	}
	var fields []string
	if p.CareerStage != "" {
		fields = append(fields, "career stage: "+p.CareerStage)
	}
	if p.TargetRole != "" {
		fields = append(fields, "target role: "+p.TargetRole)
	}
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, ", ")
}
