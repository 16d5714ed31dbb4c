package equipment

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var assetNumberPattern = regexp.MustCompile(`^TOP-\d{4}$`)

// ValidAssetNumber reports whether s matches the TOP-#### tag format.
func ValidAssetNumber(s string) bool { return assetNumberPattern.MatchString(s) }

// ValidateEquipment checks field-level invariants on a fully merged record.
// The returned map is keyed by field name; empty means valid. No I/O.
func ValidateEquipment(e *Equipment) map[string]string {
	fields := map[string]string{}

	required := []struct{ name, value string }{
		{"description", e.Description},
		{"brand", e.Brand},
		{"model", e.Model},
		{"location", e.Location},
		{"responsible", e.Responsible},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields[f.name] = "is required"
		}
	}

	if e.AssetNumber != "" && !ValidAssetNumber(e.AssetNumber) {
		fields["asset_number"] = "must match TOP- followed by exactly 4 digits"
	}

	if !ValidStatus(e.Status) {
		fields["status"] = "must be one of active, maintenance, retired"
	}

	if !e.Value.GreaterThan(decimal.Zero) {
		fields["value"] = "must be greater than zero"
	}

	if e.AcquisitionDate.IsZero() {
		fields["acquisition_date"] = "is required"
	} else if e.AcquisitionDate.After(Today().Time) {
		fields["acquisition_date"] = "cannot be in the future"
	}

	hasMaintDesc := e.MaintenanceDescription != nil && strings.TrimSpace(*e.MaintenanceDescription) != ""
	if e.Status == StatusMaintenance && !hasMaintDesc {
		fields["maintenance_description"] = "is required while under maintenance"
	}
	if e.Status != StatusMaintenance && hasMaintDesc {
		fields["maintenance_description"] = "only applies while under maintenance"
	}

	return fields
}

// validateTransfer checks a transfer against the current record. Empty map
// means the transfer may proceed.
func validateTransfer(current *Equipment, req TransferRequest) map[string]string {
	fields := map[string]string{}

	loc := strings.TrimSpace(req.NewLocation)
	switch {
	case loc == "":
		fields["new_location"] = "is required"
	case len(loc) < 3:
		fields["new_location"] = "must be at least 3 characters"
	case loc == current.Location:
		fields["new_location"] = "must differ from the current location"
	}

	switch {
	case req.TransferDate.IsZero():
		fields["transfer_date"] = "is required"
	case req.TransferDate.After(Today().Time):
		fields["transfer_date"] = "cannot be in the future"
	case req.TransferDate.Before(current.AcquisitionDate.Time):
		fields["transfer_date"] = "cannot precede the acquisition date"
	}

	return fields
}
