package domain

import "time"

type ProjectStatus string

const (
	// StatusEmpty means no version has been generated yet.
	StatusEmpty ProjectStatus = "empty"
	// StatusGenerating means credits are debited and model calls are outstanding.
	StatusGenerating ProjectStatus = "generating"
	// StatusReady means the project has current code and no generation in flight.
	StatusReady ProjectStatus = "ready"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Project is a user-owned website described in natural language and built
// from immutable generated versions.
type Project struct {
	ID            string `json:"id"`
	OwnerID       string `json:"ownerId"`
	Name          string `json:"name"`
	InitialPrompt string `json:"initialPrompt"`
	// CurrentCode is the denormalized content of the current version.
	// Empty until the first generation succeeds.
	CurrentCode string `json:"currentCode"`
	// CurrentVersionID is empty when no version is current, or after a raw
	// save overwrote CurrentCode outside the version chain.
	CurrentVersionID string        `json:"currentVersionId,omitempty"`
	Status           ProjectStatus `json:"status"`
	Published        bool          `json:"published"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Version is an immutable snapshot of a project's code. Versions are never
// mutated or deleted except by project-cascade deletion.
type Version struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is one entry in a project's append-only conversation trail.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// User carries the credit balance and lifetime creation counter for an
// account. Identity is verified upstream; this service only meters credits.
type User struct {
	ID             string    `json:"id"`
	Credits        int64     `json:"credits"`
	TotalCreations int64     `json:"totalCreations"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
