package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autofixai/autofix-backend/internal/store"
)

func TestDiagnosisPrompt_ContainsVehicleFactsAndContext(t *testing.T) {
	vehicle := &store.Vehicle{Make: "Toyota", Model: "Camry", Year: 2018, Mileage: 82000}
	prompt := DiagnosisPrompt(vehicle, "engine rattles at idle", "heat shield notes")

	assert.Contains(t, prompt, "Make: Toyota")
	assert.Contains(t, prompt, "Model: Camry")
	assert.Contains(t, prompt, "Year: 2018")
	assert.Contains(t, prompt, "Mileage: 82000")
	assert.Contains(t, prompt, "engine rattles at idle")
	assert.Contains(t, prompt, "heat shield notes")
	assert.Contains(t, prompt, "JSON format")
}

func TestDiagnosisPrompt_UnknownMileage(t *testing.T) {
	vehicle := &store.Vehicle{Make: "Toyota", Model: "Camry", Year: 2018}
	prompt := DiagnosisPrompt(vehicle, "rattle", "")
	assert.Contains(t, prompt, "Mileage: Unknown")
}

func TestRepairGuidePrompt_CodesListedOrNone(t *testing.T) {
	vehicle := &store.Vehicle{Make: "Honda", Model: "Civic", Year: 2015}

	withCodes := RepairGuidePrompt(vehicle, &store.VehicleIssue{
		Description:     "misfire",
		DiagnosticCodes: []string{"P0300", "P0301"},
	})
	assert.Contains(t, withCodes, "P0300, P0301")

	noCodes := RepairGuidePrompt(vehicle, &store.VehicleIssue{Description: "misfire"})
	assert.Contains(t, noCodes, "Diagnostic Codes:\nNone")
}

func TestChatPrompt_TrimsHistoryToMemorySize(t *testing.T) {
	var history []store.ChatMessage
	for i := 0; i < 10; i++ {
		history = append(history,
			store.ChatMessage{Role: "user", Content: fmt.Sprintf("question %d", i)},
			store.ChatMessage{Role: "assistant", Content: fmt.Sprintf("answer %d", i)},
		)
	}

	prompt := ChatPrompt("ctx", nil, history, 2, "final question")

	// Only the last two exchanges survive.
	assert.Contains(t, prompt, "question 8")
	assert.Contains(t, prompt, "question 9")
	assert.NotContains(t, prompt, "question 7")
	assert.Contains(t, prompt, "final question")
}

func TestChatPrompt_IncludesSummaries(t *testing.T) {
	prompt := ChatPrompt("ctx", map[string]string{"manual.pdf": "A service manual."}, nil, 3, "q")
	assert.True(t, strings.Contains(prompt, "manual.pdf: A service manual."))
}

func TestChatPrompt_SummariesOrderedByFilename(t *testing.T) {
	summaries := map[string]string{
		"wiring.txt": "Wiring diagrams.",
		"brakes.txt": "Brake service steps.",
		"engine.txt": "Engine overhaul notes.",
	}

	prompt := ChatPrompt("ctx", summaries, nil, 3, "q")
	for i := 0; i < 20; i++ {
		assert.Equal(t, prompt, ChatPrompt("ctx", summaries, nil, 3, "q"))
	}

	brakes := strings.Index(prompt, "brakes.txt")
	engine := strings.Index(prompt, "engine.txt")
	wiring := strings.Index(prompt, "wiring.txt")
	assert.True(t, brakes < engine && engine < wiring)
}
