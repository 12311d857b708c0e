package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/chargesim/core/model"
)

// WriteJSON writes the hourly demand profile to w in JSON format.
func WriteJSON(w io.Writer, hours []model.HourlyData) error {
	enc := json.NewEncoder(w)
	return enc.Encode(hours)
}

// WriteCSV writes the hourly demand profile to w in CSV format.
func WriteCSV(w io.Writer, hours []model.HourlyData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hour", "power_demand_kw", "active_charge_points"}); err != nil {
		return err
	}
	for _, h := range hours {
		rec := []string{
			strconv.Itoa(h.Hour),
			formatFloat(h.PowerDemand),
			strconv.Itoa(h.ActiveChargePoints),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes inputs and headline outputs as metric,value rows.
func WriteSummaryCSV(w io.Writer, in model.SimulationInputs, out model.SimulationOutputs) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "value"},
		{"charge_points_count", strconv.Itoa(in.ChargePointsCount)},
		{"arrival_multiplier", formatFloat(in.ArrivalMultiplier)},
		{"car_consumption_kwh_per_100km", formatFloat(in.CarConsumption)},
		{"charging_power_kw", formatFloat(in.ChargingPower)},
		{"theoretical_max_power_kw", formatFloat(out.TheoreticalMaxPower)},
		{"actual_max_power_kw", formatFloat(out.ActualMaxPower)},
		{"concurrency_factor_percent", formatFloat(out.ConcurrencyFactor)},
		{"total_energy_charged_kwh", formatFloat(out.TotalEnergyCharged)},
		{"total_charging_events", strconv.Itoa(out.TotalChargingEvents)},
		{"average_charging_duration_min", formatFloat(out.AverageChargingDuration)},
		{"daily_events", formatFloat(out.DailyEvents)},
		{"weekly_events", formatFloat(out.WeeklyEvents)},
		{"monthly_events", formatFloat(out.MonthlyEvents)},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
