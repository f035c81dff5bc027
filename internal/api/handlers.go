package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autofixai/autofix-backend/internal/auth"
	"github.com/autofixai/autofix-backend/internal/core"
	"github.com/autofixai/autofix-backend/internal/store"
)

// Store is the document-store surface the handlers use directly.
type Store interface {
	CreateUser(ctx context.Context, user *store.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	CreateVehicle(ctx context.Context, vehicle *store.Vehicle) (string, error)
	GetVehicle(ctx context.Context, id string) (*store.Vehicle, error)
	GetVehiclesByUser(ctx context.Context, userID string) ([]store.Vehicle, error)
	ResolveIssue(ctx context.Context, vehicleID, issueID, resolution string) (bool, error)
}

// DiagnosticsService produces diagnoses and repair guides.
type DiagnosticsService interface {
	Diagnose(ctx context.Context, userID, vehicleID, issueDescription string, obdCodes []string) (*core.DiagnosisResult, error)
	RepairGuide(ctx context.Context, userID, vehicleID, issueID string) (map[string]any, error)
}

// ConversationService implements the document chat.
type ConversationService interface {
	Create(ctx context.Context, userID string) (*store.Conversation, error)
	AddDocuments(ctx context.Context, userID, convID string, files []core.UploadedFile) (map[string]string, error)
	Chat(ctx context.Context, userID, convID, prompt string, temperature float64, memorySize int) (*core.ChatResult, error)
}

type APIHandler struct {
	store         Store
	diagnostics   DiagnosticsService
	conversations ConversationService
}

func NewAPIHandler(s Store, d DiagnosticsService, c ConversationService) *APIHandler {
	return &APIHandler{store: s, diagnostics: d, conversations: c}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByID(r.Context(), userID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID.Hex())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondCoreError maps the service error taxonomy onto HTTP statuses.
func respondCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, core.ErrForbidden):
		http.Error(w, "Not authorized to access this resource", http.StatusForbidden)
	case errors.Is(err, core.ErrNoDocuments):
		http.Error(w, "No documents processed yet", http.StatusBadRequest)
	case errors.Is(err, core.ErrUpstream):
		http.Error(w, "Generation backend unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("Error checking email %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "This email address is already registered", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user := &store.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	if _, err := h.store.CreateUser(r.Context(), user); err != nil {
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(user.ID.Hex())
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.Email, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type CreateVehicleRequest struct {
	Make    string            `json:"make"`
	Model   string            `json:"model"`
	Year    int               `json:"year"`
	Type    store.VehicleType `json:"type"`
	VIN     string            `json:"vin,omitempty"`
	Mileage int               `json:"mileage,omitempty"`
}

func (h *APIHandler) CreateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Make == "" || req.Model == "" || req.Year == 0 {
		http.Error(w, "Make, model and year are required", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = store.VehicleTypeOther
	}
	if !req.Type.Valid() {
		http.Error(w, "Unknown vehicle type", http.StatusBadRequest)
		return
	}

	vehicle := &store.Vehicle{
		UserID:  userID,
		Make:    req.Make,
		Model:   req.Model,
		Year:    req.Year,
		Type:    req.Type,
		VIN:     req.VIN,
		Mileage: req.Mileage,
	}
	if _, err := h.store.CreateVehicle(r.Context(), vehicle); err != nil {
		log.Printf("Error creating vehicle for user %s: %v", userID, err)
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(vehicle)
}

func (h *APIHandler) ListVehiclesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	vehicles, err := h.store.GetVehiclesByUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing vehicles for user %s: %v", userID, err)
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	if vehicles == nil {
		vehicles = []store.Vehicle{}
	}
	json.NewEncoder(w).Encode(vehicles)
}

func (h *APIHandler) GetVehicleHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	vehicleID := chi.URLParam(r, "vehicleID")

	vehicle, err := h.store.GetVehicle(r.Context(), vehicleID)
	if err != nil {
		log.Printf("Error getting vehicle %s: %v", vehicleID, err)
		http.Error(w, "Failed to get vehicle", http.StatusInternalServerError)
		return
	}
	if vehicle == nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if vehicle.UserID != userID {
		http.Error(w, "Not authorized to access this vehicle", http.StatusForbidden)
		return
	}
	json.NewEncoder(w).Encode(vehicle)
}

type ResolveIssueRequest struct {
	Resolution string `json:"resolution"`
}

func (h *APIHandler) ResolveIssueHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	vehicleID := chi.URLParam(r, "vehicleID")
	issueID := chi.URLParam(r, "issueID")

	var req ResolveIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	vehicle, err := h.store.GetVehicle(r.Context(), vehicleID)
	if err != nil {
		log.Printf("Error getting vehicle %s: %v", vehicleID, err)
		http.Error(w, "Failed to get vehicle", http.StatusInternalServerError)
		return
	}
	if vehicle == nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if vehicle.UserID != userID {
		http.Error(w, "Not authorized to access this vehicle", http.StatusForbidden)
		return
	}

	resolved, err := h.store.ResolveIssue(r.Context(), vehicleID, issueID, req.Resolution)
	if err != nil {
		log.Printf("Error resolving issue %s on vehicle %s: %v", issueID, vehicleID, err)
		http.Error(w, "Failed to resolve issue", http.StatusInternalServerError)
		return
	}
	if !resolved {
		http.Error(w, "Issue not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type DiagnosticRequest struct {
	VehicleID        string   `json:"vehicle_id"`
	IssueDescription string   `json:"issue_description"`
	OBDCodes         []string `json:"obd_codes"`
}

func (h *APIHandler) DiagnoseHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req DiagnosticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.VehicleID == "" || req.IssueDescription == "" {
		http.Error(w, "vehicle_id and issue_description are required", http.StatusBadRequest)
		return
	}

	result, err := h.diagnostics.Diagnose(r.Context(), userID, req.VehicleID, req.IssueDescription, req.OBDCodes)
	if err != nil {
		log.Printf("Error diagnosing vehicle %s for user %s: %v", req.VehicleID, userID, err)
		respondCoreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}

func (h *APIHandler) RepairGuideHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	issueID := chi.URLParam(r, "issueID")
	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		http.Error(w, "vehicle_id query parameter is required", http.StatusBadRequest)
		return
	}

	guide, err := h.diagnostics.RepairGuide(r.Context(), userID, vehicleID, issueID)
	if err != nil {
		log.Printf("Error building repair guide for issue %s: %v", issueID, err)
		respondCoreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(guide)
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	conv, err := h.conversations.Create(r.Context(), userID)
	if err != nil {
		log.Printf("Error creating conversation for user %s: %v", userID, err)
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(conv)
}

const maxUploadBytes = 32 << 20 // 32 MiB across all files

func (h *APIHandler) UploadDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	convID := chi.URLParam(r, "conversationID")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		http.Error(w, "At least one file is required", http.StatusBadRequest)
		return
	}

	var files []core.UploadedFile
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "Failed to read uploaded file "+header.Filename, http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Failed to read uploaded file "+header.Filename, http.StatusBadRequest)
			return
		}
		files = append(files, core.UploadedFile{Name: header.Filename, Content: string(content)})
	}

	summaries, err := h.conversations.AddDocuments(r.Context(), userID, convID, files)
	if err != nil {
		log.Printf("Error adding documents to conversation %s: %v", convID, err)
		respondCoreError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"message":   "Documents processed successfully",
		"summaries": summaries,
	})
}

type ChatRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MemorySize  int     `json:"memory_size"`
}

func (h *APIHandler) ConversationChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	convID := chi.URLParam(r, "conversationID")

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "Prompt cannot be empty", http.StatusBadRequest)
		return
	}
	if req.MemorySize <= 0 {
		req.MemorySize = 3
	}

	result, err := h.conversations.Chat(r.Context(), userID, convID, req.Prompt, req.Temperature, req.MemorySize)
	if err != nil {
		log.Printf("Error chatting in conversation %s: %v", convID, err)
		respondCoreError(w, err)
		return
	}
	json.NewEncoder(w).Encode(result)
}
