package equipment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/internal/errs"
)

// Recorder derives and appends history entries for equipment mutations.
// Entries are written with a single multi-row INSERT so a batch is
// all-or-nothing: callers never observe a partial audit trail.
type Recorder struct {
	db app.DB
}

// NewRecorder creates a history recorder over the given database.
func NewRecorder(db app.DB) *Recorder {
	return &Recorder{db: db}
}

// trackedColumns are the attributes compared between snapshots, in the order
// their entries are emitted.
var trackedColumns = []string{
	"asset_number",
	"description",
	"brand",
	"model",
	"specs",
	"status",
	"location",
	"responsible",
	"acquisition_date",
	"invoice_date",
	"value",
	"maintenance_description",
}

// snapshot stringifies the tracked attributes of an equipment record.
func snapshot(e *Equipment) map[string]string {
	opt := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	inv := ""
	if e.InvoiceDate != nil {
		inv = e.InvoiceDate.String()
	}
	return map[string]string{
		"asset_number":            e.AssetNumber,
		"description":             e.Description,
		"brand":                   e.Brand,
		"model":                   e.Model,
		"specs":                   opt(e.Specs),
		"status":                  string(e.Status),
		"location":                e.Location,
		"responsible":             e.Responsible,
		"acquisition_date":        e.AcquisitionDate.String(),
		"invoice_date":            inv,
		"value":                   e.Value.String(),
		"maintenance_description": opt(e.MaintenanceDescription),
	}
}

// diffEntries emits one entry per attribute whose stringified value differs.
// Status changes become status_changed entries; maintenance description
// changes become maintenance entries; everything else is edited.
func diffEntries(equipmentID uuid.UUID, before, after map[string]string, actor string) []HistoryEntry {
	now := time.Now()
	var entries []HistoryEntry
	for _, col := range trackedColumns {
		oldV, newV := before[col], after[col]
		if oldV == newV {
			continue
		}
		ct := ChangeEdited
		switch col {
		case "status":
			ct = ChangeStatusChanged
		case "maintenance_description":
			ct = ChangeMaintenance
		}
		field, o, n := col, oldV, newV
		entries = append(entries, HistoryEntry{
			ID:          uuid.New(),
			EquipmentID: equipmentID,
			ChangeType:  ct,
			Field:       &field,
			OldValue:    &o,
			NewValue:    &n,
			Actor:       actor,
			CreatedAt:   now,
		})
	}
	return entries
}

// buildInsert renders a multi-row INSERT for the given entries.
func buildInsert(entries []HistoryEntry) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("insert into equipment_history (id, equipment_id, change_type, field, old_value, new_value, actor, notes, created_at) values ")
	args := make([]interface{}, 0, len(entries)*9)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args, e.ID, e.EquipmentID, e.ChangeType, e.Field, e.OldValue, e.NewValue, e.Actor, e.Notes, e.CreatedAt)
	}
	return sb.String(), args
}

func (r *Recorder) append(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q, args := buildInsert(entries)
	if _, err := r.db.Exec(ctx, q, args...); err != nil {
		return &errs.PersistenceError{Op: "append history", Err: err}
	}
	return nil
}

// RecordFieldChanges compares two snapshots and appends one entry per
// changed attribute. Unchanged attributes never produce entries.
func (r *Recorder) RecordFieldChanges(ctx context.Context, equipmentID uuid.UUID, before, after *Equipment, actor string) ([]HistoryEntry, error) {
	entries := diffEntries(equipmentID, snapshot(before), snapshot(after), actor)
	if err := r.append(ctx, entries); err != nil {
		return entries, err
	}
	return entries, nil
}

// RecordTransfer appends the single transferred entry for a location move.
// It rejects no-op transfers and dates outside [acquisition date, today].
func (r *Recorder) RecordTransfer(ctx context.Context, current *Equipment, req TransferRequest, actor string) (*HistoryEntry, error) {
	if fields := validateTransfer(current, req); len(fields) > 0 {
		return nil, &errs.ValidationError{Fields: fields}
	}
	field := "location"
	from, to := current.Location, strings.TrimSpace(req.NewLocation)
	entry := HistoryEntry{
		ID:          uuid.New(),
		EquipmentID: current.ID,
		ChangeType:  ChangeTransferred,
		Field:       &field,
		OldValue:    &from,
		NewValue:    &to,
		Actor:       actor,
		Notes:       req.Observations,
		CreatedAt:   time.Now(),
	}
	if err := r.append(ctx, []HistoryEntry{entry}); err != nil {
		return &entry, err
	}
	return &entry, nil
}

// RecordCreation appends the created entry. note typically carries the asset
// number, or a reference to the source purchase request for conversions.
func (r *Recorder) RecordCreation(ctx context.Context, equipmentID uuid.UUID, actor, note string) error {
	return r.append(ctx, []HistoryEntry{{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		ChangeType:  ChangeCreated,
		NewValue:    &note,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}})
}

// RecordDeletion appends the final deleted entry before the row is removed.
func (r *Recorder) RecordDeletion(ctx context.Context, equipmentID uuid.UUID, actor, assetNumber string) error {
	return r.append(ctx, []HistoryEntry{{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		ChangeType:  ChangeDeleted,
		OldValue:    &assetNumber,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}})
}

// RecordAttachmentAdded appends an attached_file entry.
func (r *Recorder) RecordAttachmentAdded(ctx context.Context, equipmentID uuid.UUID, actor, filename string) error {
	return r.append(ctx, []HistoryEntry{{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		ChangeType:  ChangeAttachedFile,
		NewValue:    &filename,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}})
}

// RecordAttachmentRemoved appends a removed_file entry.
func (r *Recorder) RecordAttachmentRemoved(ctx context.Context, equipmentID uuid.UUID, actor, filename string) error {
	return r.append(ctx, []HistoryEntry{{
		ID:          uuid.New(),
		EquipmentID: equipmentID,
		ChangeType:  ChangeRemovedFile,
		OldValue:    &filename,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}})
}

// List returns history entries for an equipment id, newest first.
func (r *Recorder) List(ctx context.Context, equipmentID uuid.UUID, page, limit int) (*HistoryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int
	if err := r.db.QueryRow(ctx, "select count(*) from equipment_history where equipment_id=$1", equipmentID).Scan(&total); err != nil {
		return nil, &errs.PersistenceError{Op: "count history", Err: err}
	}

	rows, err := r.db.Query(ctx, `
		select id, equipment_id, change_type, field, old_value, new_value, actor, notes, created_at
		from equipment_history
		where equipment_id=$1
		order by created_at desc
		limit $2 offset $3`, equipmentID, limit, offset)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list history", Err: err}
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.EquipmentID, &h.ChangeType, &h.Field, &h.OldValue, &h.NewValue, &h.Actor, &h.Notes, &h.CreatedAt); err != nil {
			return nil, &errs.PersistenceError{Op: "scan history", Err: err}
		}
		history = append(history, h)
	}
	return &HistoryResponse{History: history, Total: total, Page: page, Limit: limit}, nil
}
