package assistant

import (
	"strings"
	"testing"
)

func TestAssemblePrompt(t *testing.T) {
	block := "Popular Events (by registered participants):\n1. Basketball Cup: exactly 37 registered participants\n\n"
	msg := "  How many joined the Basketball Cup?  "
	p := AssemblePrompt(block, msg)

	if p.User != msg {
		t.Errorf("user prompt must be verbatim, got %q", p.User)
	}
	if !strings.HasSuffix(p.System, "Current federation data:\n"+block) {
		t.Errorf("context block not placed verbatim at the end:\n%s", p.System)
	}
	for _, want := range []string{"1. Suggest", "2. Answer", "3. Report", "exactly as given"} {
		if !strings.Contains(p.System, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(p.System, "4. ") {
		t.Error("template should list exactly three capabilities")
	}
}

func TestPromptTemplate_EmptyContextBlock(t *testing.T) {
	p := AssemblePrompt("", "hello")
	if !strings.HasSuffix(p.System, "Current federation data:\n") {
		t.Errorf("empty block should leave heading last, got %q", p.System[len(p.System)-40:])
	}
}

func TestPromptTemplate_CustomSlots(t *testing.T) {
	tmpl := PromptTemplate{
		Role:           "ROLE",
		Capabilities:   [3]string{"a", "b", "c"},
		Directives:     []string{"d1"},
		ContextHeading: "DATA:",
	}
	want := "ROLE\n\nYou can:\n1. a\n2. b\n3. c\n\nImportant:\n- d1\n\nDATA:\nBLOCK"
	if got := tmpl.Render("BLOCK"); got != want {
		t.Errorf("Render:\n got %q\nwant %q", got, want)
	}
}
