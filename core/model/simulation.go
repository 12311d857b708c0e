package model

import "time"

// SimulationInputs holds the parameters describing a charging site.
type SimulationInputs struct {
	// ChargePointsCount is the number of installed charging stations.
	ChargePointsCount int `json:"chargePointsCount"`
	// ArrivalMultiplier scales the reference hourly usage pattern (1.0 = baseline).
	ArrivalMultiplier float64 `json:"arrivalMultiplier"`
	// CarConsumption is the vehicle consumption in kWh per 100 km.
	CarConsumption float64 `json:"carConsumption"`
	// ChargingPower is the power delivered by one charge point in kW.
	ChargingPower float64 `json:"chargingPower"`
}

// HourlyData is the demand estimate for one hour of a typical day.
type HourlyData struct {
	Hour               int     `json:"hour"`
	PowerDemand        float64 `json:"powerDemand"`
	ActiveChargePoints int     `json:"activeChargePoints"`
}

// SimulationOutputs is the result of one demand estimation.
type SimulationOutputs struct {
	TotalEnergyCharged      float64      `json:"totalEnergyCharged"`
	TheoreticalMaxPower     float64      `json:"theoreticalMaxPower"`
	ActualMaxPower          float64      `json:"actualMaxPower"`
	ConcurrencyFactor       float64      `json:"concurrencyFactor"`
	TotalChargingEvents     int          `json:"totalChargingEvents"`
	AverageChargingDuration float64      `json:"averageChargingDuration"`
	HourlyData              []HourlyData `json:"hourlyData"`
	DailyEvents             float64      `json:"dailyEvents"`
	WeeklyEvents            float64      `json:"weeklyEvents"`
	MonthlyEvents           float64      `json:"monthlyEvents"`
}

// Simulation is a persisted input/output pair.
type Simulation struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Inputs    SimulationInputs  `json:"inputs"`
	Outputs   SimulationOutputs `json:"outputs"`
}

// Clone returns a deep copy so callers never share the hourly slice.
func (s Simulation) Clone() Simulation {
	s.Outputs = s.Outputs.Clone()
	return s
}

// Clone returns a copy of the outputs with its own hourly slice.
func (o SimulationOutputs) Clone() SimulationOutputs {
	if o.HourlyData != nil {
		o.HourlyData = append([]HourlyData(nil), o.HourlyData...)
	}
	return o
}
