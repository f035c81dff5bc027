package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/autofixai/autofix-backend/internal/store"
)

const (
	diagnosisSystemPrompt = "You are an automotive diagnostic expert. " +
		"Analyze the vehicle information and issue description to provide a diagnosis. " +
		"Classify the severity as low, medium, high, or critical. " +
		"Provide likely causes and recommended actions."

	repairGuideSystemPrompt = "You are an automotive repair expert. " +
		"Create a detailed step-by-step repair guide for the given vehicle issue. " +
		"Include safety precautions, tools needed, and estimated time for each step."

	chatSystemPrompt = "You are a helpful assistant. Answer questions based on the " +
		"provided document context and summaries. If the answer is not found in the " +
		"provided context, clearly state that you don't have the information."

	summarySystemPrompt = "You are a helpful assistant that writes concise summaries. " +
		"Summarize the document in 2-3 sentences. Just return the summary itself, nothing else."
)

// DiagnosisPrompt builds the diagnosis request from vehicle facts, the
// caller's issue description and retrieved knowledge-base context. The LLM
// is always instructed to answer in JSON; compliance is checked by the
// response parser, not here.
func DiagnosisPrompt(vehicle *store.Vehicle, issueDescription, context string) string {
	mileage := "Unknown"
	if vehicle.Mileage > 0 {
		mileage = fmt.Sprintf("%d", vehicle.Mileage)
	}

	return fmt.Sprintf(`Vehicle Information:
- Make: %s
- Model: %s
- Year: %d
- Mileage: %s

Issue Description:
%s

Relevant Technical Information:
%s

Provide a diagnosis in JSON format with the following fields:
- likely_causes: list of potential causes
- severity: severity level (low, medium, high, critical)
- recommended_actions: list of recommended actions
- diagnostic_codes: list of potential OBD-II codes (if applicable)
- explanation: detailed explanation of the diagnosis`,
		vehicle.Make, vehicle.Model, vehicle.Year, mileage, issueDescription, context)
}

// RepairGuidePrompt builds the repair-guide request for an existing issue.
func RepairGuidePrompt(vehicle *store.Vehicle, issue *store.VehicleIssue) string {
	codes := "None"
	if len(issue.DiagnosticCodes) > 0 {
		codes = strings.Join(issue.DiagnosticCodes, ", ")
	}

	return fmt.Sprintf(`Vehicle Information:
- Make: %s
- Model: %s
- Year: %d

Issue Description:
%s

Diagnostic Codes:
%s

Create a detailed repair guide with the following sections:
1. Safety Precautions
2. Tools Required
3. Parts Required (if applicable)
4. Step-by-Step Instructions
5. Estimated Time
6. Tips and Warnings

Format the response in JSON with these sections as keys.`,
		vehicle.Make, vehicle.Model, vehicle.Year, issue.Description, codes)
}

// ChatPrompt builds the document-chat request: retrieved context, per-file
// summaries, the last memorySize exchanges verbatim, and the question.
func ChatPrompt(context string, summaries map[string]string, history []store.ChatMessage, memorySize int, question string) string {
	// Sorted so the prompt is stable across calls.
	files := make([]string, 0, len(summaries))
	for file := range summaries {
		files = append(files, file)
	}
	sort.Strings(files)

	var summaryText strings.Builder
	for _, file := range files {
		fmt.Fprintf(&summaryText, "%s: %s\n\n", file, summaries[file])
	}

	// One exchange is a user message plus the assistant reply.
	if memorySize <= 0 {
		memorySize = 3
	}
	keep := memorySize * 2
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	var memory strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&memory, "%s: %s\n", msg.Role, msg.Content)
	}

	return fmt.Sprintf(`Use the following context and summaries to answer the question.

Context:
%s

Document Summaries:
%s

Conversation History:
%s

Question: %s`,
		context, strings.TrimSpace(summaryText.String()), strings.TrimSpace(memory.String()), question)
}
