package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/top-ti/inventory-go/cmd/api/equipment"
)

// Urgency classifies how soon a purchase is needed.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Status is the purchase request lifecycle state. Acquired is terminal and
// only ever set by the converter.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusAcquired Status = "acquired"
)

// PurchaseRequest is a pending acquisition ask. Its lifecycle is independent
// from equipment until converted.
type PurchaseRequest struct {
	ID                  uuid.UUID       `json:"id"`
	Description         string          `json:"description"`
	Category            string          `json:"category"`
	EstimatedQuantity   int             `json:"estimated_quantity"`
	EstimatedUnitValue  decimal.Decimal `json:"estimated_unit_value"`
	EstimatedTotalValue decimal.Decimal `json:"estimated_total_value"`
	Urgency             Urgency         `json:"urgency"`
	Status              Status          `json:"status"`
	RequestedBy         string          `json:"requested_by"`
	RequestDate         equipment.Date  `json:"request_date"`
	ExpectedDate        *equipment.Date `json:"expected_date"`
	Supplier            *string         `json:"supplier"`
	Observations        *string         `json:"observations"`
	ApprovedBy          *string         `json:"approved_by"`
	ApprovalDate        *equipment.Date `json:"approval_date"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CreateRequest carries the fields for a new purchase request.
type CreateRequest struct {
	Description        string          `json:"description" validate:"required"`
	Category           string          `json:"category" validate:"required"`
	EstimatedQuantity  int             `json:"estimated_quantity" validate:"required,gt=0"`
	EstimatedUnitValue decimal.Decimal `json:"estimated_unit_value"`
	Urgency            Urgency         `json:"urgency" validate:"required,oneof=low medium high critical"`
	RequestedBy        string          `json:"requested_by" validate:"required"`
	ExpectedDate       *equipment.Date `json:"expected_date"`
	Supplier           *string         `json:"supplier"`
	Observations       *string         `json:"observations"`
}

// UpdateRequest updates a subset of fields; nil means unchanged. Status may
// move between pending, approved and rejected here, never to acquired.
type UpdateRequest struct {
	Description        *string          `json:"description"`
	Category           *string          `json:"category"`
	EstimatedQuantity  *int             `json:"estimated_quantity"`
	EstimatedUnitValue *decimal.Decimal `json:"estimated_unit_value"`
	Urgency            *Urgency         `json:"urgency"`
	Status             *Status          `json:"status"`
	ExpectedDate       *equipment.Date  `json:"expected_date"`
	Supplier           *string          `json:"supplier"`
	Observations       *string          `json:"observations"`
}

// ConvertRequest supplies the equipment fields for a conversion, plus the
// optional approval stamp.
type ConvertRequest struct {
	Equipment    equipment.CreateEquipmentRequest `json:"equipment"`
	ApprovedBy   *string                          `json:"approved_by"`
	ApprovalDate *equipment.Date                  `json:"approval_date"`
}

// SearchFilters narrows purchase listings.
type SearchFilters struct {
	Status  string `form:"status"`
	Urgency string `form:"urgency"`
	Page    int    `form:"page"`
	Limit   int    `form:"limit"`
}

// ListResponse is a paginated purchase listing.
type ListResponse struct {
	Purchases []PurchaseRequest `json:"purchases"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
}
