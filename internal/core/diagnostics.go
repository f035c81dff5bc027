package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autofixai/autofix-backend/internal/llm"
	"github.com/autofixai/autofix-backend/internal/store"
	"github.com/autofixai/autofix-backend/internal/vector"
)

const knowledgeCollection = "automotive_knowledge"

// VehicleStore is the slice of the document store the diagnostics flow
// needs; *store.MongoStore satisfies it, tests use a fake.
type VehicleStore interface {
	GetVehicle(ctx context.Context, id string) (*store.Vehicle, error)
	AppendIssue(ctx context.Context, vehicleID string, issue *store.VehicleIssue) (string, error)
}

// Retriever answers similarity queries against a named collection.
type Retriever interface {
	Query(ctx context.Context, collection, text string, topN int) ([]vector.Match, error)
}

type DiagnosticsService struct {
	vehicles  VehicleStore
	retriever Retriever
	llm       llm.Client
}

func NewDiagnosticsService(vehicles VehicleStore, retriever Retriever, llmClient llm.Client) *DiagnosticsService {
	return &DiagnosticsService{
		vehicles:  vehicles,
		retriever: retriever,
		llm:       llmClient,
	}
}

// DiagnosisResult pairs the diagnosis payload with the id of the issue
// recorded on the vehicle.
type DiagnosisResult struct {
	Diagnosis map[string]any `json:"diagnosis"`
	IssueID   string         `json:"issue_id"`
}

// Diagnose turns a vehicle id and an issue description into a structured
// diagnosis and records it as a new issue on the vehicle.
func (s *DiagnosticsService) Diagnose(ctx context.Context, userID, vehicleID, issueDescription string, obdCodes []string) (*DiagnosisResult, error) {
	vehicle, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}
	if vehicle.UserID != userID {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrForbidden)
	}

	query := fmt.Sprintf("%s %s %s", vehicle.Make, vehicle.Model, issueDescription)
	matches, err := s.retriever.Query(ctx, knowledgeCollection, query, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	retrieved := joinMatches(matches)

	response, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Prompt: DiagnosisPrompt(vehicle, issueDescription, retrieved),
		System: diagnosisSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	diagnosis, ok := ExtractJSON(response)
	if !ok {
		log.Printf("Could not parse JSON from diagnosis response, returning fallback")
		diagnosis = FallbackDiagnosis(response)
	}

	issue := &store.VehicleIssue{
		Title:           fmt.Sprintf("Issue on %s", time.Now().Format("2006-01-02")),
		Description:     issueDescription,
		Severity:        coerceSeverity(diagnosis["severity"]),
		DiagnosticCodes: mergeCodes(diagnosis["diagnostic_codes"], obdCodes),
		CreatedAt:       time.Now(),
	}

	issueID, err := s.vehicles.AppendIssue(ctx, vehicleID, issue)
	if err != nil {
		return nil, fmt.Errorf("failed to append issue: %w", err)
	}
	if issueID == "" {
		// Vehicle was deleted between lookup and append.
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}

	return &DiagnosisResult{Diagnosis: diagnosis, IssueID: issueID}, nil
}

// RepairGuide produces a structured repair guide for an existing issue.
// Nothing is persisted.
func (s *DiagnosticsService) RepairGuide(ctx context.Context, userID, vehicleID, issueID string) (map[string]any, error) {
	vehicle, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}
	if vehicle.UserID != userID {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, ErrForbidden)
	}

	var issue *store.VehicleIssue
	for i := range vehicle.Issues {
		if vehicle.Issues[i].ID == issueID {
			issue = &vehicle.Issues[i]
			break
		}
	}
	if issue == nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}

	response, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Prompt: RepairGuidePrompt(vehicle, issue),
		System: repairGuideSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	guide, ok := ExtractJSON(response)
	if !ok {
		return map[string]any{"raw_guide": response}, nil
	}
	return guide, nil
}

func joinMatches(matches []vector.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// coerceSeverity maps whatever the LLM put in the severity field into the
// closed taxonomy, defaulting to medium.
func coerceSeverity(value any) store.Severity {
	str, _ := value.(string)
	severity := store.Severity(str)
	if !severity.Valid() {
		return store.SeverityMedium
	}
	return severity
}

// mergeCodes unions parsed diagnostic codes with caller-supplied OBD codes,
// preserving order and dropping duplicates.
func mergeCodes(parsed any, obdCodes []string) []string {
	codes := []string{}
	seen := map[string]bool{}

	appendCode := func(code string) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}

	if list, ok := parsed.([]any); ok {
		for _, v := range list {
			if code, ok := v.(string); ok {
				appendCode(code)
			}
		}
	}
	for _, code := range obdCodes {
		appendCode(code)
	}
	return codes
}
