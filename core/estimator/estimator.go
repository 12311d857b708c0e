package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/chargesim/core/model"
)

const (
	// averageTripKm is the distance recharged by an average session.
	averageTripKm = 50
	// sessionsPerActivePoint is the daily turnover of an active charge point.
	sessionsPerActivePoint = 3.5

	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

// Estimate derives the hourly demand profile and the summary statistics for
// the given site. It performs no validation: callers must ensure
// ChargePointsCount and ChargingPower are strictly positive.
func Estimate(in model.SimulationInputs) model.SimulationOutputs {
	theoreticalMaxPower := float64(in.ChargePointsCount) * in.ChargingPower

	hourly := make([]model.HourlyData, HoursPerDay)
	demand := make([]float64, HoursPerDay)
	active := make([]float64, HoursPerDay)
	for hour, usage := range hourlyUsagePattern {
		adjustedUsage := usage * in.ArrivalMultiplier
		points := int(math.Round(float64(in.ChargePointsCount) * adjustedUsage))
		if points > in.ChargePointsCount {
			points = in.ChargePointsCount
		}
		power := roundTo(float64(points)*in.ChargingPower, 2)
		hourly[hour] = model.HourlyData{Hour: hour, PowerDemand: power, ActiveChargePoints: points}
		demand[hour] = power
		active[hour] = float64(points)
	}

	actualMaxPower := floats.Max(demand)
	concurrencyFactor := actualMaxPower / theoreticalMaxPower * 100
	avgActivePoints := floats.Sum(active) / HoursPerDay

	avgEnergyPerSession := sessionEnergy(in.CarConsumption)
	avgChargingDuration := avgEnergyPerSession / in.ChargingPower * 60

	dailyEvents := int(math.Round(avgActivePoints * sessionsPerActivePoint))
	totalChargingEvents := dailyEvents * daysPerYear
	totalEnergyCharged := float64(totalChargingEvents) * avgEnergyPerSession

	return model.SimulationOutputs{
		TotalEnergyCharged:      roundTo(totalEnergyCharged, 2),
		TheoreticalMaxPower:     roundTo(theoreticalMaxPower, 2),
		ActualMaxPower:          roundTo(actualMaxPower, 2),
		ConcurrencyFactor:       roundTo(concurrencyFactor, 2),
		TotalChargingEvents:     totalChargingEvents,
		AverageChargingDuration: roundTo(avgChargingDuration, 2),
		HourlyData:              hourly,
		DailyEvents:             roundTo(float64(dailyEvents), 2),
		WeeklyEvents:            roundTo(float64(dailyEvents*daysPerWeek), 2),
		MonthlyEvents:           roundTo(float64(dailyEvents*daysPerMonth), 2),
	}
}

// EnergyPerSession returns the energy in kWh delivered by an average session.
func EnergyPerSession(in model.SimulationInputs) float64 {
	return sessionEnergy(in.CarConsumption)
}

func sessionEnergy(consumption float64) float64 {
	return consumption / 100 * averageTripKm
}

// PeakHour returns the first hour reaching the peak power demand.
func PeakHour(out model.SimulationOutputs) (int, bool) {
	if len(out.HourlyData) == 0 {
		return 0, false
	}
	demand := make([]float64, len(out.HourlyData))
	for i, h := range out.HourlyData {
		demand[i] = h.PowerDemand
	}
	return out.HourlyData[floats.MaxIdx(demand)].Hour, true
}

// roundTo rounds x half away from zero to the given number of decimals.
func roundTo(x float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(x*scale) / scale
}
