package equipment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/metrics"
	"github.com/top-ti/inventory-go/internal/errs"
)

// createAttempts bounds asset number collision retries.
const createAttempts = 5

// Service orchestrates the equipment lifecycle: create, update, transfer and
// delete, each paired with its history entries.
type Service struct {
	db  app.DB
	rec *Recorder
	q   *redis.Client
}

// NewService creates an equipment service. q may be nil; history retry jobs
// are then only logged.
func NewService(db app.DB, q *redis.Client) *Service {
	return &Service{db: db, rec: NewRecorder(db), q: q}
}

// Recorder exposes the history recorder for collaborating packages.
func (s *Service) Recorder() *Recorder { return s.rec }

// FormatAssetNumber renders the canonical TOP-#### tag.
func FormatAssetNumber(n int) string { return fmt.Sprintf("TOP-%04d", n) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nextAssetSuffix returns the highest numeric suffix currently minted.
func (s *Service) nextAssetSuffix(ctx context.Context) (int, error) {
	var max int
	err := s.db.QueryRow(ctx,
		`select coalesce(max(substring(asset_number from 5)::int), 0) from equipment where asset_number ~ '^TOP-[0-9]{4}$'`).Scan(&max)
	if err != nil {
		return 0, &errs.PersistenceError{Op: "scan asset numbers", Err: err}
	}
	return max, nil
}

func fromCreate(req CreateEquipmentRequest) *Equipment {
	e := &Equipment{
		ID:                     uuid.New(),
		AssetNumber:            strings.TrimSpace(req.AssetNumber),
		Description:            strings.TrimSpace(req.Description),
		Brand:                  strings.TrimSpace(req.Brand),
		Model:                  strings.TrimSpace(req.Model),
		Specs:                  req.Specs,
		Status:                 req.Status,
		Location:               strings.TrimSpace(req.Location),
		Responsible:            strings.TrimSpace(req.Responsible),
		AcquisitionDate:        req.AcquisitionDate,
		InvoiceDate:            req.InvoiceDate,
		Value:                  req.Value,
		MaintenanceDescription: req.MaintenanceDescription,
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if e.Status != StatusMaintenance {
		e.MaintenanceDescription = nil
	}
	return e
}

// Create validates the record, mints the next unused asset number (unless one
// was supplied) and persists it with a created history entry. Generation is
// safe under concurrent creation: an insert collision moves to the next
// candidate instead of trusting the earlier read.
func (s *Service) Create(ctx context.Context, req CreateEquipmentRequest, actor string) (*Equipment, error) {
	e := fromCreate(req)
	if fields := ValidateEquipment(e); len(fields) > 0 {
		return nil, &errs.ValidationError{Fields: fields}
	}

	explicit := e.AssetNumber != ""
	attempts := createAttempts
	suffix := 0
	if explicit {
		attempts = 1
	} else {
		max, err := s.nextAssetSuffix(ctx)
		if err != nil {
			return nil, err
		}
		suffix = max + 1
	}

	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	for attempt := 1; attempt <= attempts; attempt++ {
		if !explicit {
			e.AssetNumber = FormatAssetNumber(suffix)
		}
		_, err := s.db.Exec(ctx, `
			insert into equipment (
				id, asset_number, description, brand, model, specs, status,
				location, responsible, acquisition_date, invoice_date, value,
				maintenance_description, created_at, updated_at
			) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			e.ID, e.AssetNumber, e.Description, e.Brand, e.Model, e.Specs, e.Status,
			e.Location, e.Responsible, e.AcquisitionDate, e.InvoiceDate, e.Value,
			e.MaintenanceDescription, e.CreatedAt, e.UpdatedAt)
		if err == nil {
			note := req.CreationNote
			if note == "" {
				note = e.AssetNumber
			}
			if hErr := s.rec.RecordCreation(ctx, e.ID, actor, note); hErr != nil {
				s.retryHistoryLater(ctx, hErr, []HistoryEntry{creationEntry(e.ID, actor, note)})
			}
			metrics.EquipmentCreatedTotal.Inc()
			return e, nil
		}
		if isUniqueViolation(err) {
			if explicit {
				return nil, &errs.DuplicateAssetNumberError{AssetNumber: e.AssetNumber, Attempts: 1}
			}
			suffix++
			continue
		}
		return nil, &errs.PersistenceError{Op: "insert equipment", Err: err}
	}
	return nil, &errs.DuplicateAssetNumberError{AssetNumber: e.AssetNumber, Attempts: attempts}
}

func creationEntry(id uuid.UUID, actor, note string) HistoryEntry {
	return HistoryEntry{
		ID:          uuid.New(),
		EquipmentID: id,
		ChangeType:  ChangeCreated,
		NewValue:    &note,
		Actor:       actor,
		CreatedAt:   time.Now(),
	}
}

const equipmentColumns = `id, asset_number, description, brand, model, specs, status,
	location, responsible, acquisition_date, invoice_date, value,
	maintenance_description, created_at, updated_at`

func scanEquipment(row pgx.Row) (*Equipment, error) {
	e := &Equipment{}
	var invoice sql.NullTime
	err := row.Scan(
		&e.ID, &e.AssetNumber, &e.Description, &e.Brand, &e.Model, &e.Specs, &e.Status,
		&e.Location, &e.Responsible, &e.AcquisitionDate, &invoice, &e.Value,
		&e.MaintenanceDescription, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if invoice.Valid {
		d := Date{invoice.Time}
		e.InvoiceDate = &d
	}
	return e, nil
}

// Get loads one equipment record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	row := s.db.QueryRow(ctx, "select "+equipmentColumns+" from equipment where id=$1", id)
	e, err := scanEquipment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &errs.NotFoundError{Entity: "equipment", ID: id.String()}
		}
		return nil, &errs.PersistenceError{Op: "get equipment", Err: err}
	}
	return e, nil
}

// applyUpdate merges a partial update over the current record and returns the
// merged copy. Leaving maintenance clears the maintenance description.
func applyUpdate(current *Equipment, req UpdateEquipmentRequest) *Equipment {
	after := *current
	if req.Description != nil {
		after.Description = strings.TrimSpace(*req.Description)
	}
	if req.Brand != nil {
		after.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		after.Model = strings.TrimSpace(*req.Model)
	}
	if req.Specs != nil {
		after.Specs = req.Specs
	}
	if req.Status != nil {
		after.Status = *req.Status
	}
	if req.Location != nil {
		after.Location = strings.TrimSpace(*req.Location)
	}
	if req.Responsible != nil {
		after.Responsible = strings.TrimSpace(*req.Responsible)
	}
	if req.AcquisitionDate != nil {
		after.AcquisitionDate = *req.AcquisitionDate
	}
	if req.InvoiceDate != nil {
		after.InvoiceDate = req.InvoiceDate
	}
	if req.Value != nil {
		after.Value = *req.Value
	}
	if req.MaintenanceDescription != nil {
		after.MaintenanceDescription = req.MaintenanceDescription
	}
	if after.Status != StatusMaintenance {
		after.MaintenanceDescription = nil
	}
	return &after
}

// columnValue returns the typed value persisted for a tracked column.
func columnValue(e *Equipment, col string) interface{} {
	switch col {
	case "asset_number":
		return e.AssetNumber
	case "description":
		return e.Description
	case "brand":
		return e.Brand
	case "model":
		return e.Model
	case "specs":
		return e.Specs
	case "status":
		return e.Status
	case "location":
		return e.Location
	case "responsible":
		return e.Responsible
	case "acquisition_date":
		return e.AcquisitionDate
	case "invoice_date":
		return e.InvoiceDate
	case "value":
		return e.Value
	case "maintenance_description":
		return e.MaintenanceDescription
	}
	return nil
}

// Update merges partial fields, revalidates and persists. A history failure
// after the row was written is surfaced as a warning and queued for retry,
// never as a request failure: the equipment row is authoritative.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateEquipmentRequest, actor string) (*Equipment, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	after := applyUpdate(before, req)
	if fields := ValidateEquipment(after); len(fields) > 0 {
		return nil, &errs.ValidationError{Fields: fields}
	}

	beforeSnap, afterSnap := snapshot(before), snapshot(after)
	setParts := []string{}
	args := []interface{}{}
	argIndex := 1
	for _, col := range trackedColumns {
		if beforeSnap[col] == afterSnap[col] {
			continue
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, argIndex))
		args = append(args, columnValue(after, col))
		argIndex++
	}
	if len(setParts) == 0 {
		return before, nil
	}

	after.UpdatedAt = time.Now()
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, after.UpdatedAt)
	argIndex++
	args = append(args, id)

	q := fmt.Sprintf("update equipment set %s where id = $%d", strings.Join(setParts, ", "), argIndex)
	if _, err := s.db.Exec(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, &errs.DuplicateAssetNumberError{AssetNumber: after.AssetNumber, Attempts: 1}
		}
		return nil, &errs.PersistenceError{Op: "update equipment", Err: err}
	}

	if entries, hErr := s.rec.RecordFieldChanges(ctx, id, before, after, actor); hErr != nil {
		s.retryHistoryLater(ctx, hErr, entries)
	}
	return after, nil
}

// Transfer moves equipment to a new location and records the single
// transferred entry, regardless of how many fields changed along the way.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID, req TransferRequest, actor string) (*Equipment, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields := validateTransfer(before, req); len(fields) > 0 {
		return nil, &errs.ValidationError{Fields: fields}
	}

	after := *before
	after.Location = strings.TrimSpace(req.NewLocation)
	if req.Responsible != nil && strings.TrimSpace(*req.Responsible) != "" {
		after.Responsible = strings.TrimSpace(*req.Responsible)
	}
	after.UpdatedAt = time.Now()

	if _, err := s.db.Exec(ctx,
		"update equipment set location = $1, responsible = $2, updated_at = $3 where id = $4",
		after.Location, after.Responsible, after.UpdatedAt, id); err != nil {
		return nil, &errs.PersistenceError{Op: "transfer equipment", Err: err}
	}

	if entry, hErr := s.rec.RecordTransfer(ctx, before, req, actor); hErr != nil {
		var vErr *errs.ValidationError
		if errors.As(hErr, &vErr) {
			return nil, hErr
		}
		s.retryHistoryLater(ctx, hErr, []HistoryEntry{*entry})
	}
	metrics.EquipmentTransferredTotal.Inc()
	return &after, nil
}

// Delete records the final deleted entry, then removes the row. The history
// trail is the only remaining trace; there is no restore path.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rec.RecordDeletion(ctx, id, actor, e.AssetNumber); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, "delete from equipment where id = $1", id); err != nil {
		return &errs.PersistenceError{Op: "delete equipment", Err: err}
	}
	return nil
}

// List retrieves equipment with filtering and pagination. Deleted records
// are gone from the table and so never appear.
func (s *Service) List(ctx context.Context, filters SearchFilters) (*ListResponse, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filters.Query != "" {
		whereConditions = append(whereConditions, fmt.Sprintf(
			"(description ilike $%d or brand ilike $%d or model ilike $%d or asset_number ilike $%d)",
			argIndex, argIndex, argIndex, argIndex))
		args = append(args, "%"+filters.Query+"%")
		argIndex++
	}
	if filters.Status != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filters.Status)
		argIndex++
	}
	if filters.Location != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("location ilike $%d", argIndex))
		args = append(args, "%"+filters.Location+"%")
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "where " + strings.Join(whereConditions, " and ")
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "asset_number", "description", "status", "location", "created_at", "updated_at":
		sortBy = filters.SortBy
	}
	sortOrder := "desc"
	if filters.SortOrder == "asc" {
		sortOrder = "asc"
	}

	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	offset := (filters.Page - 1) * filters.Limit

	var total int
	countQuery := "select count(*) from equipment " + whereClause
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, &errs.PersistenceError{Op: "count equipment", Err: err}
	}

	query := fmt.Sprintf("select %s from equipment %s order by %s %s limit $%d offset $%d",
		equipmentColumns, whereClause, sortBy, sortOrder, argIndex, argIndex+1)
	args = append(args, filters.Limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list equipment", Err: err}
	}
	defer rows.Close()

	var items []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, &errs.PersistenceError{Op: "scan equipment", Err: err}
		}
		items = append(items, *e)
	}

	pages := int(math.Ceil(float64(total) / float64(filters.Limit)))
	return &ListResponse{Equipment: items, Total: total, Page: filters.Page, Limit: filters.Limit, Pages: pages}, nil
}

// History lists the audit trail for one equipment id, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, page, limit int) (*HistoryResponse, error) {
	return s.rec.List(ctx, id, page, limit)
}

// Job is the queue envelope shared with the worker.
type Job struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HistoryRetryType labels queued history entries awaiting re-insertion.
const HistoryRetryType = "history_retry"

// retryHistoryLater queues entries that failed to persist so the worker can
// re-append them. The failure is never silent: it is logged, counted and
// queued (or logged loudly when no queue is configured).
func (s *Service) retryHistoryLater(ctx context.Context, cause error, entries []HistoryEntry) {
	log.Ctx(ctx).Warn().Err(cause).Int("entries", len(entries)).Msg("history append failed; scheduling retry")
	metrics.HistoryRetryEnqueuedTotal.Inc()
	if s.q == nil {
		log.Ctx(ctx).Error().Msg("no retry queue configured; history entries dropped from this process")
		return
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(Job{Type: HistoryRetryType, Data: data})
		if err != nil {
			continue
		}
		if err := s.q.RPush(ctx, "jobs", payload).Err(); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("enqueue history retry")
		}
	}
}
