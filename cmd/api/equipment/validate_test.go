package equipment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validEquipment() *Equipment {
	return &Equipment{
		AssetNumber:     "TOP-0001",
		Description:     "Notebook Dell Latitude",
		Brand:           "Dell",
		Model:           "Latitude 5440",
		Status:          StatusActive,
		Location:        "HQ 2nd floor",
		Responsible:     "Ana Souza",
		AcquisitionDate: NewDate(2024, time.January, 10),
		Value:           decimal.NewFromInt(4500),
	}
}

func TestValidateEquipmentOK(t *testing.T) {
	if fields := ValidateEquipment(validEquipment()); len(fields) != 0 {
		t.Fatalf("expected no errors, got %v", fields)
	}
}

func TestValidateEquipmentFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Equipment)
		field  string
	}{
		{"missing description", func(e *Equipment) { e.Description = "  " }, "description"},
		{"missing brand", func(e *Equipment) { e.Brand = "" }, "brand"},
		{"missing model", func(e *Equipment) { e.Model = "" }, "model"},
		{"missing location", func(e *Equipment) { e.Location = "" }, "location"},
		{"missing responsible", func(e *Equipment) { e.Responsible = "" }, "responsible"},
		{"bad asset number", func(e *Equipment) { e.AssetNumber = "TOP-12" }, "asset_number"},
		{"lowercase prefix", func(e *Equipment) { e.AssetNumber = "top-0001" }, "asset_number"},
		{"five digits", func(e *Equipment) { e.AssetNumber = "TOP-00001" }, "asset_number"},
		{"bad status", func(e *Equipment) { e.Status = "broken" }, "status"},
		{"zero value", func(e *Equipment) { e.Value = decimal.Zero }, "value"},
		{"negative value", func(e *Equipment) { e.Value = decimal.NewFromInt(-1) }, "value"},
		{"missing acquisition date", func(e *Equipment) { e.AcquisitionDate = Date{} }, "acquisition_date"},
		{"future acquisition date", func(e *Equipment) {
			e.AcquisitionDate = Date{time.Now().AddDate(0, 0, 2)}
		}, "acquisition_date"},
		{"maintenance without description", func(e *Equipment) {
			e.Status = StatusMaintenance
		}, "maintenance_description"},
		{"description outside maintenance", func(e *Equipment) {
			d := "screen swap"
			e.MaintenanceDescription = &d
		}, "maintenance_description"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEquipment()
			tc.mutate(e)
			fields := ValidateEquipment(e)
			if _, ok := fields[tc.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestValidateEquipmentMaintenanceOK(t *testing.T) {
	e := validEquipment()
	e.Status = StatusMaintenance
	d := "fan replacement"
	e.MaintenanceDescription = &d
	if fields := ValidateEquipment(e); len(fields) != 0 {
		t.Fatalf("expected no errors, got %v", fields)
	}
}

func TestValidateTransfer(t *testing.T) {
	current := validEquipment()
	ok := TransferRequest{NewLocation: "Branch office", TransferDate: Today()}
	if fields := validateTransfer(current, ok); len(fields) != 0 {
		t.Fatalf("expected valid transfer, got %v", fields)
	}

	cases := []struct {
		name  string
		req   TransferRequest
		field string
	}{
		{"empty location", TransferRequest{TransferDate: Today()}, "new_location"},
		{"short location", TransferRequest{NewLocation: "B1", TransferDate: Today()}, "new_location"},
		{"whitespace only", TransferRequest{NewLocation: "   ", TransferDate: Today()}, "new_location"},
		{"same location", TransferRequest{NewLocation: "HQ 2nd floor", TransferDate: Today()}, "new_location"},
		{"missing date", TransferRequest{NewLocation: "Branch office"}, "transfer_date"},
		{"future date", TransferRequest{NewLocation: "Branch office", TransferDate: Date{time.Now().AddDate(0, 0, 3)}}, "transfer_date"},
		{"before acquisition", TransferRequest{NewLocation: "Branch office", TransferDate: NewDate(2023, time.December, 31)}, "transfer_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validateTransfer(current, tc.req)
			if _, ok := fields[tc.field]; !ok {
				t.Fatalf("expected error on %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestValidAssetNumber(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"TOP-0001", true},
		{"TOP-9999", true},
		{"TOP-999", false},
		{"TOP-01234", false},
		{"XTOP-0001", false},
		{"TOP-0001X", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidAssetNumber(tc.in); got != tc.want {
			t.Errorf("ValidAssetNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
