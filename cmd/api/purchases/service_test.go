package purchases

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/internal/errs"
)

type execCall struct {
	sql  string
	args []interface{}
}

type fakeDB struct {
	queryRow func(sql string, args []interface{}) pgx.Row
	exec     func(sql string, args []interface{}) error
	execs    []execCall
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if db.queryRow != nil {
		return db.queryRow(sql, args)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	if db.exec != nil {
		return pgconn.CommandTag{}, db.exec(sql, args)
	}
	return pgconn.CommandTag{}, nil
}

type fakeRow struct {
	vals []interface{}
	err  error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		if i >= len(r.vals) || r.vals[i] == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

func purchaseVals(id uuid.UUID, status Status) []interface{} {
	return []interface{}{
		id, "10 notebooks", "computers", 10, decimal.NewFromInt(4500),
		decimal.NewFromInt(45000), UrgencyHigh, status, "Ana Souza",
		equipment.NewDate(2025, time.June, 1), nil,
		nil, nil, nil, nil, time.Now(), time.Now(),
	}
}

func validCreate() CreateRequest {
	return CreateRequest{
		Description:        "10 notebooks",
		Category:           "computers",
		EstimatedQuantity:  10,
		EstimatedUnitValue: decimal.NewFromInt(4500),
		Urgency:            UrgencyHigh,
		RequestedBy:        "Ana Souza",
	}
}

func equipmentFields() equipment.CreateEquipmentRequest {
	return equipment.CreateEquipmentRequest{
		AssetNumber:     "TOP-0042",
		Description:     "Notebook Dell Latitude",
		Brand:           "Dell",
		Model:           "Latitude 5440",
		Location:        "HQ 2nd floor",
		Responsible:     "Ana Souza",
		AcquisitionDate: equipment.NewDate(2025, time.July, 1),
		Value:           decimal.NewFromInt(4500),
	}
}

func TestCheckCreate(t *testing.T) {
	if err := checkCreate(validCreate()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing description", func(r *CreateRequest) { r.Description = "" }, "description"},
		{"missing category", func(r *CreateRequest) { r.Category = "" }, "category"},
		{"zero quantity", func(r *CreateRequest) { r.EstimatedQuantity = 0 }, "estimated_quantity"},
		{"bad urgency", func(r *CreateRequest) { r.Urgency = "urgent" }, "urgency"},
		{"missing requester", func(r *CreateRequest) { r.RequestedBy = "" }, "requested_by"},
		{"zero unit value", func(r *CreateRequest) { r.EstimatedUnitValue = decimal.Zero }, "estimated_unit_value"},
		{"past expected date", func(r *CreateRequest) {
			d := equipment.NewDate(2020, time.January, 1)
			r.ExpectedDate = &d
		}, "expected_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreate()
			tc.mutate(&req)
			err := checkCreate(req)
			var vErr *errs.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.Fields[tc.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tc.field, vErr.Fields)
			}
		})
	}
}

func TestCreateDerivesTotal(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, equipment.NewService(db, nil))
	p, err := svc.Create(context.Background(), validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.EstimatedTotalValue.Equal(decimal.NewFromInt(45000)) {
		t.Fatalf("total = %s, want 45000", p.EstimatedTotalValue)
	}
	if p.Status != StatusPending {
		t.Fatalf("status = %q, want pending", p.Status)
	}
}

func TestUpdateAcquiredIsImmutable(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusAcquired)}
		},
	}
	svc := NewService(db, equipment.NewService(db, nil))
	d := "more notebooks"
	_, err := svc.Update(context.Background(), id, UpdateRequest{Description: &d})
	var vErr *errs.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(db.execs) != 0 {
		t.Fatal("acquired request reached the database")
	}
}

func TestUpdateCannotSetAcquired(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusPending)}
		},
	}
	svc := NewService(db, equipment.NewService(db, nil))
	st := StatusAcquired
	_, err := svc.Update(context.Background(), id, UpdateRequest{Status: &st})
	var vErr *errs.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := vErr.Fields["status"]; !ok {
		t.Fatalf("expected status error, got %v", vErr.Fields)
	}
}

func TestConvertRequiresPending(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusRejected)}
		},
	}
	svc := NewService(db, equipment.NewService(db, nil))
	_, err := svc.Convert(context.Background(), id, ConvertRequest{Equipment: equipmentFields()}, "tester")
	var vErr *errs.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(db.execs) != 0 {
		t.Fatal("rejected request produced writes")
	}
}

func TestConvertSuccess(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusPending)}
		},
	}
	svc := NewService(db, equipment.NewService(db, nil))
	e, err := svc.Convert(context.Background(), id, ConvertRequest{Equipment: equipmentFields()}, "tester")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if e.AssetNumber != "TOP-0042" {
		t.Fatalf("asset number = %q", e.AssetNumber)
	}

	var sawInsert, sawHistory, sawAcquire bool
	for _, call := range db.execs {
		switch {
		case strings.Contains(call.sql, "insert into equipment ("):
			sawInsert = true
		case strings.Contains(call.sql, "equipment_history"):
			sawHistory = true
			found := false
			for _, a := range call.args {
				if s, ok := a.(*string); ok && s != nil && strings.Contains(*s, id.String()) {
					found = true
				}
			}
			if !found {
				t.Fatal("creation entry does not reference the source purchase request")
			}
		case strings.Contains(call.sql, "update purchase_requests"):
			sawAcquire = true
		}
	}
	if !sawInsert || !sawHistory || !sawAcquire {
		t.Fatalf("missing writes: insert=%v history=%v acquire=%v", sawInsert, sawHistory, sawAcquire)
	}
}

func TestConvertCompensatesWhenAcquireFails(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusPending)}
		},
	}
	db.exec = func(sql string, args []interface{}) error {
		if strings.Contains(sql, "update purchase_requests") {
			return errors.New("connection reset")
		}
		return nil
	}
	svc := NewService(db, equipment.NewService(db, nil))
	_, err := svc.Convert(context.Background(), id, ConvertRequest{Equipment: equipmentFields()}, "tester")

	var convErr *errs.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if convErr.Step != 2 {
		t.Fatalf("step = %d, want 2", convErr.Step)
	}

	acquireTries, sawCompensation := 0, false
	for _, call := range db.execs {
		if strings.Contains(call.sql, "update purchase_requests") {
			acquireTries++
		}
		if strings.HasPrefix(call.sql, "delete from equipment") {
			sawCompensation = true
		}
	}
	if acquireTries != acquireAttempts {
		t.Fatalf("acquire tries = %d, want %d", acquireTries, acquireAttempts)
	}
	if !sawCompensation {
		t.Fatal("created equipment was not removed after acquire failure")
	}
}

func TestConvertAbortsWhenEquipmentInvalid(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		queryRow: func(sql string, args []interface{}) pgx.Row {
			return fakeRow{vals: purchaseVals(id, StatusPending)}
		},
	}
	svc := NewService(db, equipment.NewService(db, nil))
	fields := equipmentFields()
	fields.Value = decimal.Zero
	_, err := svc.Convert(context.Background(), id, ConvertRequest{Equipment: fields}, "tester")

	var convErr *errs.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if convErr.Step != 1 {
		t.Fatalf("step = %d, want 1", convErr.Step)
	}
	for _, call := range db.execs {
		if strings.Contains(call.sql, "update purchase_requests") {
			t.Fatal("purchase request touched after step 1 failure")
		}
	}
}
