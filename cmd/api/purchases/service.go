package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	app "github.com/top-ti/inventory-go/cmd/api/app"
	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/cmd/api/metrics"
	"github.com/top-ti/inventory-go/internal/errs"
)

// acquireAttempts bounds retries of the status-to-acquired transition, which
// is idempotent and safe to re-issue.
const acquireAttempts = 3

// Service manages purchase requests and their conversion into equipment.
type Service struct {
	db        app.DB
	equipment *equipment.Service
}

// NewService creates a purchase service sharing the equipment lifecycle
// manager for conversions.
func NewService(db app.DB, eq *equipment.Service) *Service {
	return &Service{db: db, equipment: eq}
}

const purchaseColumns = `id, description, category, estimated_quantity, estimated_unit_value,
	estimated_total_value, urgency, status, requested_by, request_date, expected_date,
	supplier, observations, approved_by, approval_date, created_at, updated_at`

func scanPurchase(row pgx.Row) (*PurchaseRequest, error) {
	p := &PurchaseRequest{}
	err := row.Scan(
		&p.ID, &p.Description, &p.Category, &p.EstimatedQuantity, &p.EstimatedUnitValue,
		&p.EstimatedTotalValue, &p.Urgency, &p.Status, &p.RequestedBy, &p.RequestDate, &p.ExpectedDate,
		&p.Supplier, &p.Observations, &p.ApprovedBy, &p.ApprovalDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// Create validates and persists a new pending purchase request. The total is
// derived from quantity and unit value, never taken from the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*PurchaseRequest, error) {
	if err := checkCreate(req); err != nil {
		return nil, err
	}
	now := time.Now()
	p := &PurchaseRequest{
		ID:                  uuid.New(),
		Description:         strings.TrimSpace(req.Description),
		Category:            strings.TrimSpace(req.Category),
		EstimatedQuantity:   req.EstimatedQuantity,
		EstimatedUnitValue:  req.EstimatedUnitValue,
		EstimatedTotalValue: req.EstimatedUnitValue.Mul(decimalFromInt(req.EstimatedQuantity)),
		Urgency:             req.Urgency,
		Status:              StatusPending,
		RequestedBy:         strings.TrimSpace(req.RequestedBy),
		RequestDate:         equipment.Today(),
		ExpectedDate:        req.ExpectedDate,
		Supplier:            req.Supplier,
		Observations:        req.Observations,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	_, err := s.db.Exec(ctx, `
		insert into purchase_requests (
			id, description, category, estimated_quantity, estimated_unit_value,
			estimated_total_value, urgency, status, requested_by, request_date,
			expected_date, supplier, observations, created_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.Description, p.Category, p.EstimatedQuantity, p.EstimatedUnitValue,
		p.EstimatedTotalValue, p.Urgency, p.Status, p.RequestedBy, p.RequestDate,
		p.ExpectedDate, p.Supplier, p.Observations, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "insert purchase request", Err: err}
	}
	return p, nil
}

// Get loads one purchase request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PurchaseRequest, error) {
	row := s.db.QueryRow(ctx, "select "+purchaseColumns+" from purchase_requests where id=$1", id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &errs.NotFoundError{Entity: "purchase request", ID: id.String()}
		}
		return nil, &errs.PersistenceError{Op: "get purchase request", Err: err}
	}
	return p, nil
}

func applyUpdate(current *PurchaseRequest, req UpdateRequest) *PurchaseRequest {
	after := *current
	if req.Description != nil {
		after.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		after.Category = strings.TrimSpace(*req.Category)
	}
	if req.EstimatedQuantity != nil {
		after.EstimatedQuantity = *req.EstimatedQuantity
	}
	if req.EstimatedUnitValue != nil {
		after.EstimatedUnitValue = *req.EstimatedUnitValue
	}
	if req.Urgency != nil {
		after.Urgency = *req.Urgency
	}
	if req.Status != nil {
		after.Status = *req.Status
	}
	if req.ExpectedDate != nil {
		after.ExpectedDate = req.ExpectedDate
	}
	if req.Supplier != nil {
		after.Supplier = req.Supplier
	}
	if req.Observations != nil {
		after.Observations = req.Observations
	}
	after.EstimatedTotalValue = after.EstimatedUnitValue.Mul(decimalFromInt(after.EstimatedQuantity))
	return &after
}

// Update merges partial fields and persists. Acquired requests are read-only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*PurchaseRequest, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusAcquired {
		return nil, &errs.ValidationError{Fields: map[string]string{
			"status": "acquired requests are immutable",
		}}
	}
	after := applyUpdate(current, req)
	if err := checkUpdated(after); err != nil {
		return nil, err
	}
	after.UpdatedAt = time.Now()
	_, err = s.db.Exec(ctx, `
		update purchase_requests set
			description = $1, category = $2, estimated_quantity = $3,
			estimated_unit_value = $4, estimated_total_value = $5, urgency = $6,
			status = $7, expected_date = $8, supplier = $9, observations = $10,
			updated_at = $11
		where id = $12`,
		after.Description, after.Category, after.EstimatedQuantity,
		after.EstimatedUnitValue, after.EstimatedTotalValue, after.Urgency,
		after.Status, after.ExpectedDate, after.Supplier, after.Observations,
		after.UpdatedAt, id)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "update purchase request", Err: err}
	}
	return after, nil
}

// Delete removes a purchase request. Acquired requests stay, they document
// where equipment came from.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusAcquired {
		return &errs.ValidationError{Fields: map[string]string{
			"status": "acquired requests cannot be deleted",
		}}
	}
	if _, err := s.db.Exec(ctx, "delete from purchase_requests where id = $1", id); err != nil {
		return &errs.PersistenceError{Op: "delete purchase request", Err: err}
	}
	return nil
}

// List retrieves purchase requests with filtering and pagination.
func (s *Service) List(ctx context.Context, filters SearchFilters) (*ListResponse, error) {
	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filters.Status != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filters.Status)
		argIndex++
	}
	if filters.Urgency != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("urgency = $%d", argIndex))
		args = append(args, filters.Urgency)
		argIndex++
	}
	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "where " + strings.Join(whereConditions, " and ")
	}

	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	offset := (filters.Page - 1) * filters.Limit

	var total int
	if err := s.db.QueryRow(ctx, "select count(*) from purchase_requests "+whereClause, args...).Scan(&total); err != nil {
		return nil, &errs.PersistenceError{Op: "count purchase requests", Err: err}
	}

	query := fmt.Sprintf("select %s from purchase_requests %s order by created_at desc limit $%d offset $%d",
		purchaseColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filters.Limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "list purchase requests", Err: err}
	}
	defer rows.Close()

	var items []PurchaseRequest
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, &errs.PersistenceError{Op: "scan purchase request", Err: err}
		}
		items = append(items, *p)
	}
	return &ListResponse{Purchases: items, Total: total, Page: filters.Page, Limit: filters.Limit}, nil
}

// Convert turns a pending purchase request into equipment. From the caller's
// standpoint the operation is atomic: either the equipment exists and the
// request is acquired, or neither change is visible.
//
// The equipment is created first; the status transition is then retried a
// bounded number of times because re-marking acquired is idempotent. If the
// transition still fails the created equipment is removed again before the
// error returns.
func (s *Service) Convert(ctx context.Context, id uuid.UUID, req ConvertRequest, actor string) (*equipment.Equipment, error) {
	purchase, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase.Status != StatusPending {
		return nil, &errs.ValidationError{Fields: map[string]string{
			"status": "only pending requests can be converted",
		}}
	}

	eqReq := req.Equipment
	eqReq.CreationNote = "converted from purchase request " + id.String()
	created, err := s.equipment.Create(ctx, eqReq, actor)
	if err != nil {
		return nil, &errs.ConversionError{Step: 1, Err: err}
	}

	var acquireErr error
	for attempt := 1; attempt <= acquireAttempts; attempt++ {
		_, acquireErr = s.db.Exec(ctx, `
			update purchase_requests
			set status = $1, approved_by = $2, approval_date = $3, updated_at = $4
			where id = $5`,
			StatusAcquired, req.ApprovedBy, req.ApprovalDate, time.Now(), id)
		if acquireErr == nil {
			metrics.PurchasesConvertedTotal.Inc()
			return created, nil
		}
		log.Ctx(ctx).Warn().Err(acquireErr).Int("attempt", attempt).
			Str("purchase_id", id.String()).Msg("marking purchase acquired failed")
	}

	// Compensate: remove the equipment so no partial state is observable.
	if _, delErr := s.db.Exec(ctx, "delete from equipment where id = $1", created.ID); delErr != nil {
		log.Ctx(ctx).Error().Err(delErr).Str("equipment_id", created.ID.String()).
			Msg("compensating equipment delete failed; manual cleanup required")
	}
	return nil, &errs.ConversionError{Step: 2, Err: acquireErr}
}
