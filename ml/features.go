package ml

import (
	"fmt"
	"strings"
)

const (
	FieldAge     = "age"
	FieldCarType = "cartype"

	MinVehicleAge     = 18
	MaxVehicleAge     = 100
	DefaultVehicleAge = 33
)

// VehicleTypes lists the selectable vehicle categories in display order.
func VehicleTypes() []string {
	return []string{"combi", "family", "sport", "minivan"}
}

// UserInput is one form submission. It is comparable and is used as a cache key.
type UserInput struct {
	VehicleAge  int         `json:"age"`
	VehicleType string      `json:"vehicle_type"`
	ModelChoice ModelChoice `json:"model"`
}

// Validate checks the form domain. The model tag is checked by the dispatcher.
func (in UserInput) Validate() error {
	if in.VehicleAge < MinVehicleAge || in.VehicleAge > MaxVehicleAge {
		return fmt.Errorf("%w: age %d outside [%d, %d]", ErrInvalidInput, in.VehicleAge, MinVehicleAge, MaxVehicleAge)
	}
	for _, t := range VehicleTypes() {
		if in.VehicleType == t {
			return nil
		}
	}
	return fmt.Errorf("%w: vehicle type %q not one of %s", ErrInvalidInput, in.VehicleType, strings.Join(VehicleTypes(), ", "))
}

// FeatureRow is a single row aligned to a bundle's expected columns.
type FeatureRow struct {
	Columns []string
	Values  []float64
}

func (r FeatureRow) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

func OneHotColumn(field, category string) string {
	return field + "_" + category
}

// EncodeFeatures one-hot encodes the vehicle type and aligns the result to
// columns. Encoded columns missing from columns are dropped; expected columns
// the encoding did not produce are zero. Age is passed through unscaled.
func EncodeFeatures(in UserInput, columns []string) (FeatureRow, error) {
	if columns == nil {
		return FeatureRow{}, ErrSchemaInconsistency
	}

	encoded := map[string]float64{
		FieldAge: float64(in.VehicleAge),
		OneHotColumn(FieldCarType, in.VehicleType): 1,
	}

	row := FeatureRow{
		Columns: append([]string(nil), columns...),
		Values:  make([]float64, len(columns)),
	}
	for i, column := range columns {
		row.Values[i] = encoded[column]
	}
	return row, nil
}
