package models

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is the lifecycle state of an approval ticket. This
// subsystem only ever creates tickets in pending state; transitions are
// owned by the external approval-resolution collaborator.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApprovalPriority orders pending tickets in the review UI
type ApprovalPriority string

const (
	ApprovalPriorityLow    ApprovalPriority = "low"
	ApprovalPriorityNormal ApprovalPriority = "normal"
	ApprovalPriorityHigh   ApprovalPriority = "high"
)

// ApprovalTicket records a gated operation awaiting a human decision.
// Parameters are serialized so the approver's re-invocation can re-supply
// them identically. Credentials are deliberately not captured: execution
// after approval always uses the integration's current credentials.
type ApprovalTicket struct {
	ID              string           `json:"id" db:"id"`
	OrganizationID  string           `json:"organization_id" db:"organization_id"`
	IntegrationID   string           `json:"integration_id" db:"integration_id"`
	IntegrationName string           `json:"integration_name" db:"integration_name"`
	IntegrationType IntegrationType  `json:"integration_type" db:"integration_type"`
	OperationName   string           `json:"operation_name" db:"operation_name"`
	OperationTitle  string           `json:"operation_title" db:"operation_title"`
	OperationType   OperationType    `json:"operation_type" db:"operation_type"`
	Parameters      json.RawMessage  `json:"parameters" db:"parameters"`
	ThreadID        *string          `json:"thread_id,omitempty" db:"thread_id"`
	MessageID       *string          `json:"message_id,omitempty" db:"message_id"`
	EstimatedImpact string           `json:"estimated_impact" db:"estimated_impact"`
	Priority        ApprovalPriority `json:"priority" db:"priority"`
	Status          ApprovalStatus   `json:"status" db:"status"`
	ResolvedBy      *string          `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}
