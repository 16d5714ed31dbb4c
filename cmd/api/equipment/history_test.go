package equipment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/top-ti/inventory-go/internal/errs"
)

func TestSnapshotCoversTrackedColumns(t *testing.T) {
	snap := snapshot(validEquipment())
	if len(snap) != len(trackedColumns) {
		t.Fatalf("snapshot has %d keys, tracked %d", len(snap), len(trackedColumns))
	}
	for _, col := range trackedColumns {
		if _, ok := snap[col]; !ok {
			t.Fatalf("snapshot missing %q", col)
		}
	}
	if snap["value"] != "4500" {
		t.Fatalf("value = %q", snap["value"])
	}
	if snap["acquisition_date"] != "2024-01-10" {
		t.Fatalf("acquisition_date = %q", snap["acquisition_date"])
	}
}

func TestDiffEntriesPerChangedField(t *testing.T) {
	before := validEquipment()
	after := *before
	after.Location = "Branch office"
	after.Status = StatusRetired

	entries := diffEntries(before.ID, snapshot(before), snapshot(&after), "tester")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	byField := map[string]HistoryEntry{}
	for _, e := range entries {
		byField[*e.Field] = e
	}
	loc := byField["location"]
	if loc.ChangeType != ChangeEdited || *loc.OldValue != "HQ 2nd floor" || *loc.NewValue != "Branch office" {
		t.Fatalf("location entry wrong: %+v", loc)
	}
	st := byField["status"]
	if st.ChangeType != ChangeStatusChanged || *st.NewValue != "retired" {
		t.Fatalf("status entry wrong: %+v", st)
	}
	for _, e := range entries {
		if e.Actor != "tester" {
			t.Fatalf("actor = %q", e.Actor)
		}
	}
}

func TestDiffEntriesMaintenanceType(t *testing.T) {
	before := validEquipment()
	after := *before
	after.Status = StatusMaintenance
	d := "fan replacement"
	after.MaintenanceDescription = &d

	entries := diffEntries(before.ID, snapshot(before), snapshot(&after), "tester")
	var foundMaint bool
	for _, e := range entries {
		if *e.Field == "maintenance_description" {
			foundMaint = true
			if e.ChangeType != ChangeMaintenance {
				t.Fatalf("change type = %q, want maintenance", e.ChangeType)
			}
		}
	}
	if !foundMaint {
		t.Fatal("no maintenance_description entry emitted")
	}
}

func TestDiffEntriesNoChanges(t *testing.T) {
	e := validEquipment()
	if entries := diffEntries(e.ID, snapshot(e), snapshot(e), "tester"); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestBuildInsertSingleStatement(t *testing.T) {
	id := uuid.New()
	f1, f2 := "location", "status"
	entries := []HistoryEntry{
		{ID: uuid.New(), EquipmentID: id, ChangeType: ChangeEdited, Field: &f1, Actor: "a", CreatedAt: time.Now()},
		{ID: uuid.New(), EquipmentID: id, ChangeType: ChangeStatusChanged, Field: &f2, Actor: "a", CreatedAt: time.Now()},
	}
	q, args := buildInsert(entries)
	if strings.Count(q, "insert into") != 1 {
		t.Fatalf("expected one statement: %s", q)
	}
	if len(args) != 18 {
		t.Fatalf("args = %d, want 18", len(args))
	}
	if !strings.Contains(q, "$18") || strings.Contains(q, "$19") {
		t.Fatalf("placeholder numbering wrong: %s", q)
	}
}

func TestRecordTransferRejectsWithoutTouchingDB(t *testing.T) {
	db := &fakeDB{}
	rec := NewRecorder(db)
	current := validEquipment()

	_, err := rec.RecordTransfer(context.Background(), current, TransferRequest{
		NewLocation:  current.Location,
		TransferDate: Today(),
	}, "tester")
	var vErr *errs.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := vErr.Fields["new_location"]; !ok {
		t.Fatalf("expected new_location error, got %v", vErr.Fields)
	}
	if len(db.execs) != 0 {
		t.Fatalf("no-op transfer reached the database: %d execs", len(db.execs))
	}
}

func TestRecordTransferWritesSingleEntry(t *testing.T) {
	db := &fakeDB{}
	rec := NewRecorder(db)
	current := validEquipment()
	obs := "handed over at reception"

	entry, err := rec.RecordTransfer(context.Background(), current, TransferRequest{
		NewLocation:  "Branch office",
		TransferDate: Today(),
		Observations: &obs,
	}, "tester")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if entry.ChangeType != ChangeTransferred {
		t.Fatalf("change type = %q", entry.ChangeType)
	}
	if *entry.OldValue != "HQ 2nd floor" || *entry.NewValue != "Branch office" {
		t.Fatalf("entry values wrong: %+v", entry)
	}
	if entry.Notes == nil || *entry.Notes != obs {
		t.Fatal("observations not carried into notes")
	}
	if len(db.execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(db.execs))
	}
}
