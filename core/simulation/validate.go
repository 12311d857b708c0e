package simulation

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/chargesim/core/model"
)

// Limits are the accepted input ranges, bounds included.
type Limits struct {
	MinChargePoints      int     `json:"min_charge_points"`
	MaxChargePoints      int     `json:"max_charge_points"`
	MinArrivalMultiplier float64 `json:"min_arrival_multiplier"`
	MaxArrivalMultiplier float64 `json:"max_arrival_multiplier"`
	MinCarConsumption    float64 `json:"min_car_consumption"`
	MaxCarConsumption    float64 `json:"max_car_consumption"`
	MinChargingPower     float64 `json:"min_charging_power"`
	MaxChargingPower     float64 `json:"max_charging_power"`
}

// DefaultLimits returns the ranges advertised by the input form.
func DefaultLimits() Limits {
	return Limits{
		MinChargePoints:      1,
		MaxChargePoints:      100,
		MinArrivalMultiplier: 0.2,
		MaxArrivalMultiplier: 2.0,
		MinCarConsumption:    10,
		MaxCarConsumption:    30,
		MinChargingPower:     3.7,
		MaxChargingPower:     50,
	}
}

// SetDefaults fills every unset bound from DefaultLimits.
func (l *Limits) SetDefaults() {
	d := DefaultLimits()
	if l.MinChargePoints == 0 {
		l.MinChargePoints = d.MinChargePoints
	}
	if l.MaxChargePoints == 0 {
		l.MaxChargePoints = d.MaxChargePoints
	}
	if l.MinArrivalMultiplier == 0 {
		l.MinArrivalMultiplier = d.MinArrivalMultiplier
	}
	if l.MaxArrivalMultiplier == 0 {
		l.MaxArrivalMultiplier = d.MaxArrivalMultiplier
	}
	if l.MinCarConsumption == 0 {
		l.MinCarConsumption = d.MinCarConsumption
	}
	if l.MaxCarConsumption == 0 {
		l.MaxCarConsumption = d.MaxCarConsumption
	}
	if l.MinChargingPower == 0 {
		l.MinChargingPower = d.MinChargingPower
	}
	if l.MaxChargingPower == 0 {
		l.MaxChargingPower = d.MaxChargingPower
	}
}

// Validate checks that every range is positive and ordered.
func (l Limits) Validate() error {
	if l.MinChargePoints <= 0 || l.MinChargePoints > l.MaxChargePoints {
		return fmt.Errorf("invalid charge points range [%d, %d]", l.MinChargePoints, l.MaxChargePoints)
	}
	ranges := []struct {
		name   string
		lo, hi float64
	}{
		{"arrival multiplier", l.MinArrivalMultiplier, l.MaxArrivalMultiplier},
		{"car consumption", l.MinCarConsumption, l.MaxCarConsumption},
		{"charging power", l.MinChargingPower, l.MaxChargingPower},
	}
	for _, r := range ranges {
		if r.lo <= 0 || r.lo > r.hi {
			return fmt.Errorf("invalid %s range [%g, %g]", r.name, r.lo, r.hi)
		}
	}
	return nil
}

// Validate rejects inputs the estimator cannot evaluate meaningfully. All
// offending fields are reported; use errors.Is with ErrInvalidInput or
// ErrDegenerateResult to classify the result.
func Validate(in model.SimulationInputs, l Limits) error {
	var errs []error
	if in.ChargePointsCount == 0 || in.ChargingPower == 0 {
		errs = append(errs, fmt.Errorf("%w: theoretical max power is zero", ErrDegenerateResult))
	}

	if in.ChargePointsCount <= 0 {
		errs = append(errs, fmt.Errorf("%w: chargePointsCount must be positive, got %d", ErrInvalidInput, in.ChargePointsCount))
	} else if in.ChargePointsCount < l.MinChargePoints || in.ChargePointsCount > l.MaxChargePoints {
		errs = append(errs, fmt.Errorf("%w: chargePointsCount %d outside [%d, %d]",
			ErrInvalidInput, in.ChargePointsCount, l.MinChargePoints, l.MaxChargePoints))
	}
	errs = append(errs,
		checkRange("arrivalMultiplier", in.ArrivalMultiplier, l.MinArrivalMultiplier, l.MaxArrivalMultiplier),
		checkRange("carConsumption", in.CarConsumption, l.MinCarConsumption, l.MaxCarConsumption),
		checkRange("chargingPower", in.ChargingPower, l.MinChargingPower, l.MaxChargingPower),
	)
	return errors.Join(errs...)
}

func checkRange(field string, v, lo, hi float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return fmt.Errorf("%w: %s must be finite", ErrInvalidInput, field)
	case v <= 0:
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidInput, field, v)
	case v < lo || v > hi:
		return fmt.Errorf("%w: %s %g outside [%g, %g]", ErrInvalidInput, field, v, lo, hi)
	}
	return nil
}

// rejectionReason maps a validation error to a metrics label.
func rejectionReason(err error) string {
	if errors.Is(err, ErrDegenerateResult) {
		return "degenerate_result"
	}
	return "invalid_input"
}
