package narrative

import (
	"context"
	"strings"
	"testing"

	"github.com/ashureev/fixedness-lab/internal/catalog"
	"github.com/ashureev/fixedness-lab/internal/domain"
)

func testWorld() catalog.World {
	return catalog.World{
		ID:          "station",
		Name:        "Derelict Station",
		Setting:     "A silent research station.",
		PreExposure: "A maintenance crew once propped doors open with scrap.",
		Puzzles: []domain.PuzzleDefinition{{
			ID:                  "p1",
			Name:                "Blast Door",
			Objective:           "Get through the door.",
			SceneDescription:    "A heavy door slides shut every few seconds.",
			FixedFunctionObject: domain.FixedObject{Name: "rusty pipe", Description: "A length of plumbing."},
			SolutionNarrative:   "Wedge the rusty pipe under the door.",
			Hints: domain.HintVariants{
				Control:      "The door seems to close on a timer.",
				Experimental: "Something rigid could keep that door open.",
			},
		}},
	}
}

func TestBuildSystemPromptVariantA(t *testing.T) {
	prompt := BuildSystemPrompt(testWorld(), domain.VariantA)

	for _, want := range []string{"Derelict Station", "rusty pipe", "Wedge the rusty pipe", "No markdown"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	for _, unwanted := range []string{"propped doors open", "Something rigid", "close on a timer", "Scene detail"} {
		if strings.Contains(prompt, unwanted) {
			t.Errorf("variant A prompt contains priming text %q", unwanted)
		}
	}
}

func TestBuildSystemPromptVariantB(t *testing.T) {
	prompt := BuildSystemPrompt(testWorld(), domain.VariantB)

	for _, want := range []string{"propped doors open", "Something rigid"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("variant B prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "close on a timer") {
		t.Error("variant B prompt should not carry the control detail")
	}
}

func TestEnsureLeadingUserTurn(t *testing.T) {
	if got := EnsureLeadingUserTurn(nil); len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}

	userFirst := []domain.Turn{{Role: domain.RoleUser, Text: "look"}}
	if got := EnsureLeadingUserTurn(userFirst); len(got) != 1 || got[0].Text != "look" {
		t.Fatalf("user-first history changed: %v", got)
	}

	modelFirst := []domain.Turn{{Role: domain.RoleModel, Text: "You wake up."}}
	got := EnsureLeadingUserTurn(modelFirst)
	if len(got) != 2 {
		t.Fatalf("expected placeholder to be inserted, got %v", got)
	}
	if got[0].Role != domain.RoleUser || got[0].Text != PlaceholderOpening {
		t.Errorf("unexpected leading turn %+v", got[0])
	}
	if modelFirst[0].Role != domain.RoleModel || len(modelFirst) != 1 {
		t.Error("input history was modified")
	}
}

func TestEngineFunc(t *testing.T) {
	var gotMessage string
	engine := EngineFunc(func(_ context.Context, _ string, _ []domain.Turn, msg string) (string, error) {
		gotMessage = msg
		return "ok", nil
	})

	reply, err := engine.GenerateReply(context.Background(), "sys", nil, "look")
	if err != nil || reply != "ok" || gotMessage != "look" {
		t.Fatalf("GenerateReply = %q, %v (message %q)", reply, err, gotMessage)
	}
}

func TestBuildContentsRoles(t *testing.T) {
	contents := buildContents([]domain.Turn{
		{Role: domain.RoleUser, Text: "look"},
		{Role: domain.RoleModel, Text: "A corridor."},
	}, "go north")

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		if string(c.Role) != wantRoles[i] {
			t.Errorf("content %d role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
}

func TestNewGeminiEngineRequiresKey(t *testing.T) {
	if _, err := NewGeminiEngine(context.Background(), "", "", 0); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
