package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/innofolio/innofolio/internal/log"
)

// SectionFeedback scores one part of the resume.
type SectionFeedback struct {
	Present                  bool     `json:"present"`
	Score                    int      `json:"score"`
	Feedback                 string   `json:"feedback"`
	HasQuantifiedAchievement bool     `json:"has_quantified_achievements,omitempty"`
	RelevantSkills           []string `json:"relevant_skills,omitempty"`
}

// ATSCompatibility reports applicant-tracking-system readiness.
type ATSCompatibility struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// GrammarIssue is one suggested language fix.
type GrammarIssue struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Issue     string `json:"issue"`
}

// Analysis is the structured resume evaluation.
type Analysis struct {
	Score            int                        `json:"score"`
	Summary          string                     `json:"summary"`
	Sections         map[string]SectionFeedback `json:"sections"`
	Strengths        []string                   `json:"strengths"`
	Improvements     []string                   `json:"improvements"`
	Keywords         []string                   `json:"keywords"`
	ATSCompatibility ATSCompatibility           `json:"ats_compatibility"`
	GrammarIssues    []GrammarIssue             `json:"grammar_issues"`

	// Degraded marks a fallback produced because the model's output
	// could not be parsed.
	Degraded bool `json:"degraded,omitempty"`
}

// DefaultAnalysis is returned when the model response cannot be parsed.
func DefaultAnalysis() Analysis {
	return Analysis{
		Score:            50,
		Summary:          "Unable to fully analyze the resume. Please ensure it contains clear sections.",
		Sections:         map[string]SectionFeedback{},
		Strengths:        []string{"Resume uploaded successfully"},
		Improvements:     []string{"Add more details to your resume for a complete analysis"},
		Keywords:         []string{},
		ATSCompatibility: ATSCompatibility{Score: 5, Issues: []string{}},
		GrammarIssues:    []GrammarIssue{},
		Degraded:         true,
	}
}

// Generator is the slice of llm.Client the analyzer needs.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Analyzer produces structured resume evaluations.
type Analyzer struct {
	generator Generator
	logger    log.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(generator Generator, logger log.Logger) *Analyzer {
	return &Analyzer{generator: generator, logger: logger}
}

// Analyze evaluates the resume text. careerStage and targetRole give
// the model user context and may be empty. A response that is not
// valid JSON degrades to DefaultAnalysis instead of failing; model
// errors are returned.
func (a *Analyzer) Analyze(ctx context.Context, resumeText, careerStage, targetRole string) (Analysis, error) {
	prompt := buildAnalysisPrompt(resumeText, careerStage, targetRole)

	response, err := a.generator.Complete(ctx, "", prompt)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze resume: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &analysis); err != nil {
		a.logger.Warn("unparseable analysis response, degrading", "error", err)
		return DefaultAnalysis(), nil
	}
	if analysis.Sections == nil {
		analysis.Sections = map[string]SectionFeedback{}
	}
	return analysis, nil
}

// stripCodeFence unwraps a ```json ... ``` fenced response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	return strings.TrimSpace(s)
}

func buildAnalysisPrompt(resumeText, careerStage, targetRole string) string {
	if careerStage == "" {
		careerStage = "Not specified"
	}
	if targetRole == "" {
		targetRole = "Not specified"
	}

	return fmt.Sprintf(`You are an expert resume reviewer and career coach. Analyze the following resume and provide a comprehensive evaluation.

Resume Text:
---
%s
---

User Context:
- Career Stage: %s
- Target Role: %s

Provide your analysis in the following JSON format (respond ONLY with valid JSON, no markdown):
{
    "score": <number 1-100>,
    "summary": "<2-3 sentence overall assessment>",
    "sections": {
        "contact_info": {"present": <true/false>, "score": <1-10>, "feedback": "<specific feedback>"},
        "summary_objective": {"present": <true/false>, "score": <1-10>, "feedback": "<specific feedback>"},
        "experience": {"present": <true/false>, "score": <1-10>, "feedback": "<specific feedback>", "has_quantified_achievements": <true/false>},
        "education": {"present": <true/false>, "score": <1-10>, "feedback": "<specific feedback>"},
        "skills": {"present": <true/false>, "score": <1-10>, "feedback": "<specific feedback>", "relevant_skills": ["<skill1>", "<skill2>"]},
        "formatting": {"score": <1-10>, "feedback": "<feedback on layout, readability, length>"}
    },
    "strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],
    "improvements": ["<specific improvement 1>", "<specific improvement 2>", "<specific improvement 3>", "<specific improvement 4>", "<specific improvement 5>"],
    "keywords": ["<keyword1>", "<keyword2>"],
    "ats_compatibility": {"score": <1-10>, "issues": ["<issue1>", "<issue2>"]},
    "grammar_issues": [{"original": "<original text>", "suggested": "<corrected text>", "issue": "<explanation>"}]
}

Be specific, actionable, and constructive in your feedback. Focus on:
1. Impact metrics and quantified achievements
2. ATS optimization
3. Relevance to target role
4. Professional language and grammar
5. Overall presentation`, resumeText, careerStage, targetRole)
}
