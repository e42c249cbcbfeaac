package rag

import (
	"fmt"
	"strings"
	"testing"
)

func TestComposer_GroundedPrompt(t *testing.T) {
	t.Parallel()

	c := NewComposer(0)
	retrieval := Retrieval{
		Context:  "[Source 1]: quantify achievements",
		Sources:  []string{"Resume Content"},
		Grounded: true,
	}

	got := c.Build("How do I improve my resume?", retrieval, nil, nil)

	if !strings.Contains(got, "## Relevant Information") {
		t.Error("grounded prompt should carry the relevant information section")
	}
	if !strings.Contains(got, "[Source 1]: quantify achievements") {
		t.Error("retrieved context missing from prompt")
	}
	if !strings.Contains(got, "## Current Question\nUser: How do I improve my resume?") {
		t.Error("current question section malformed")
	}
	if !strings.HasSuffix(got, "Please provide a helpful, actionable response:") {
		t.Errorf("prompt should end with the response instruction, got tail %q", got[max(0, len(got)-60):])
	}
}

func TestComposer_UngroundedOmitsContextSection(t *testing.T) {
	t.Parallel()

	c := NewComposer(0)
	got := c.Build("hello", Retrieval{}, nil, nil)

	if strings.Contains(got, "## Relevant Information") {
		t.Error("ungrounded prompt must not carry a context section")
	}
	if strings.Contains(got, SystemPrompt[:30]) {
		t.Error("persona belongs in the system instruction, not the prompt body")
	}
}

func TestComposer_HistoryWindow(t *testing.T) {
	t.Parallel()

	var history []Turn
	for i := 1; i <= 5; i++ {
		history = append(history,
			Turn{Role: RoleUser, Content: fmt.Sprintf("question %d", i)},
			Turn{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}

	c := NewComposer(6)
	got := c.Build("next", Retrieval{}, history, nil)

	if strings.Contains(got, "question 2") {
		t.Error("turns older than the window should be dropped")
	}
	for i := 3; i <= 5; i++ {
		if !strings.Contains(got, fmt.Sprintf("User: question %d", i)) {
			t.Errorf("turn %d missing from windowed history", i)
		}
		if !strings.Contains(got, fmt.Sprintf("InnoFolio: answer %d", i)) {
			t.Errorf("answer %d missing from windowed history", i)
		}
	}

	// Oldest-first within the window.
	q3 := strings.Index(got, "question 3")
	q5 := strings.Index(got, "question 5")
	if q3 < 0 || q5 < 0 || q3 > q5 {
		t.Error("windowed history must stay oldest-first")
	}
}

func TestComposer_NoHistorySection(t *testing.T) {
	t.Parallel()

	c := NewComposer(0)
	got := c.Build("q", Retrieval{}, nil, nil)
	if strings.Contains(got, "## Previous Conversation") {
		t.Error("empty history should omit the conversation section")
	}
}

func TestComposer_Profile(t *testing.T) {
	t.Parallel()

	c := NewComposer(0)

	got := c.Build("q", Retrieval{}, nil, &Profile{CareerStage: "student", TargetRole: "backend engineer"})
	if !strings.Contains(got, "## About the User") {
		t.Error("profile section missing")
	}
	if !strings.Contains(got, "career stage: student, target role: backend engineer") {
		t.Errorf("profile line malformed:\n%s", got)
	}

	got = c.Build("q", Retrieval{}, nil, &Profile{})
	if strings.Contains(got, "## About the User") {
		t.Error("empty profile should render no section")
	}
}

func TestComposer_SectionOrder(t *testing.T) {
	t.Parallel()

	c := NewComposer(0)
	retrieval := Retrieval{Context: "[Source 1]: x", Grounded: true}
	history := []Turn{{Role: RoleUser, Content: "earlier"}}

	got := c.Build("now", retrieval, history, &Profile{CareerStage: "fresher"})

	profile := strings.Index(got, "## About the User")
	info := strings.Index(got, "## Relevant Information")
	conv := strings.Index(got, "## Previous Conversation")
	question := strings.Index(got, "## Current Question")

	if !(profile < info && info < conv && conv < question) {
		t.Errorf("sections out of order: profile=%d info=%d conv=%d question=%d",
			profile, info, conv, question)
	}
}
