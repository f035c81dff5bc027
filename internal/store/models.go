package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VehicleType string

const (
	VehicleTypeSedan       VehicleType = "sedan"
	VehicleTypeSUV         VehicleType = "suv"
	VehicleTypeTruck       VehicleType = "truck"
	VehicleTypeHatchback   VehicleType = "hatchback"
	VehicleTypeVan         VehicleType = "van"
	VehicleTypeCoupe       VehicleType = "coupe"
	VehicleTypeConvertible VehicleType = "convertible"
	VehicleTypeWagon       VehicleType = "wagon"
	VehicleTypeOther       VehicleType = "other"
)

func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeSedan, VehicleTypeSUV, VehicleTypeTruck, VehicleTypeHatchback,
		VehicleTypeVan, VehicleTypeCoupe, VehicleTypeConvertible, VehicleTypeWagon,
		VehicleTypeOther:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type User struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"hashed_password"` // Do not expose this in JSON responses
	FirstName    string             `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName     string             `json:"last_name,omitempty" bson:"last_name,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

type VehicleIssue struct {
	ID              string    `json:"id" bson:"id"`
	Title           string    `json:"title" bson:"title"`
	Description     string    `json:"description" bson:"description"`
	Severity        Severity  `json:"severity" bson:"severity"`
	Resolved        bool      `json:"resolved" bson:"resolved"`
	Resolution      string    `json:"resolution,omitempty" bson:"resolution,omitempty"`
	DiagnosticCodes []string  `json:"diagnostic_codes" bson:"diagnostic_codes"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

type Vehicle struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          string             `json:"user_id" bson:"user_id"`
	Make            string             `json:"make" bson:"make"`
	Model           string             `json:"model" bson:"model"`
	Year            int                `json:"year" bson:"year"`
	Type            VehicleType        `json:"type" bson:"type"`
	VIN             string             `json:"vin,omitempty" bson:"vin,omitempty"`
	Mileage         int                `json:"mileage,omitempty" bson:"mileage,omitempty"`
	LastServiceDate *time.Time         `json:"last_service_date,omitempty" bson:"last_service_date,omitempty"`
	Issues          []VehicleIssue     `json:"issues" bson:"issues"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

type ChatMessage struct {
	Role    string `json:"role" bson:"role"` // "user" or "assistant"
	Content string `json:"content" bson:"content"`
}

// Conversation is the persisted context for the document chat: uploaded
// chunk counts, per-file summaries and message history, keyed by its own id
// so concurrent callers never share state.
type Conversation struct {
	ID         string            `json:"id" bson:"_id"`
	UserID     string            `json:"user_id" bson:"user_id"`
	ChunkCount int               `json:"chunk_count" bson:"chunk_count"`
	Summaries  map[string]string `json:"summaries" bson:"summaries"`
	Messages   []ChatMessage     `json:"messages" bson:"messages"`
	CreatedAt  time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" bson:"updated_at"`
}
