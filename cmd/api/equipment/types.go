package equipment

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of an equipment record.
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusRetired     Status = "retired"
)

// ValidStatus reports whether s is one of the known lifecycle statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusRetired:
		return true
	}
	return false
}

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeCreated       ChangeType = "created"
	ChangeEdited        ChangeType = "edited"
	ChangeDeleted       ChangeType = "deleted"
	ChangeMaintenance   ChangeType = "maintenance"
	ChangeStatusChanged ChangeType = "status_changed"
	ChangeAttachedFile  ChangeType = "attached_file"
	ChangeRemovedFile   ChangeType = "removed_file"
	ChangeTransferred   ChangeType = "transferred"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component. It marshals as
// YYYY-MM-DD and scans from date columns.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t.Truncate(24 * time.Hour)
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = v
	case string:
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return err
		}
		d.Time = t
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Equipment represents one physical IT asset.
type Equipment struct {
	ID                     uuid.UUID       `json:"id"`
	AssetNumber            string          `json:"asset_number"`
	Description            string          `json:"description"`
	Brand                  string          `json:"brand"`
	Model                  string          `json:"model"`
	Specs                  *string         `json:"specs"`
	Status                 Status          `json:"status"`
	Location               string          `json:"location"`
	Responsible            string          `json:"responsible"`
	AcquisitionDate        Date            `json:"acquisition_date"`
	InvoiceDate            *Date           `json:"invoice_date"`
	Value                  decimal.Decimal `json:"value"`
	MaintenanceDescription *string         `json:"maintenance_description"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// HistoryEntry is one append-only audit record tied to an equipment id.
// Entries are never updated or deleted; the trail survives equipment removal.
type HistoryEntry struct {
	ID          uuid.UUID  `json:"id"`
	EquipmentID uuid.UUID  `json:"equipment_id"`
	ChangeType  ChangeType `json:"change_type"`
	Field       *string    `json:"field,omitempty"`
	OldValue    *string    `json:"old_value,omitempty"`
	NewValue    *string    `json:"new_value,omitempty"`
	Actor       string     `json:"actor"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateEquipmentRequest carries the fields for a new equipment record.
// AssetNumber is normally left empty and generated; the purchase converter
// supplies it explicitly.
type CreateEquipmentRequest struct {
	AssetNumber            string          `json:"asset_number"`
	Description            string          `json:"description"`
	Brand                  string          `json:"brand"`
	Model                  string          `json:"model"`
	Specs                  *string         `json:"specs"`
	Status                 Status          `json:"status"`
	Location               string          `json:"location"`
	Responsible            string          `json:"responsible"`
	AcquisitionDate        Date            `json:"acquisition_date"`
	InvoiceDate            *Date           `json:"invoice_date"`
	Value                  decimal.Decimal `json:"value"`
	MaintenanceDescription *string         `json:"maintenance_description"`

	// CreationNote overrides the note on the created history entry. The
	// purchase converter uses it to reference the source request.
	CreationNote string `json:"-"`
}

// UpdateEquipmentRequest updates a subset of fields; nil means unchanged.
type UpdateEquipmentRequest struct {
	Description            *string          `json:"description"`
	Brand                  *string          `json:"brand"`
	Model                  *string          `json:"model"`
	Specs                  *string          `json:"specs"`
	Status                 *Status          `json:"status"`
	Location               *string          `json:"location"`
	Responsible            *string          `json:"responsible"`
	AcquisitionDate        *Date            `json:"acquisition_date"`
	InvoiceDate            *Date            `json:"invoice_date"`
	Value                  *decimal.Decimal `json:"value"`
	MaintenanceDescription *string          `json:"maintenance_description"`
}

// TransferRequest moves equipment to a new location, optionally changing the
// responsible person.
type TransferRequest struct {
	NewLocation  string  `json:"new_location"`
	TransferDate Date    `json:"transfer_date"`
	Responsible  *string `json:"responsible"`
	Observations *string `json:"observations"`
}

// SearchFilters narrows equipment listings.
type SearchFilters struct {
	Query     string `form:"q"`
	Status    string `form:"status"`
	Location  string `form:"location"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// ListResponse is a paginated equipment listing.
type ListResponse struct {
	Equipment []Equipment `json:"equipment"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	Limit     int         `json:"limit"`
	Pages     int         `json:"pages"`
}

// HistoryResponse is a paginated history listing, newest first.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}
