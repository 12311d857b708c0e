package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/chargesim/core/estimator"
	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/simulation"
	"github.com/kilianp07/chargesim/pkg/export"
)

var estimateFlags struct {
	chargePoints int
	arrivalPct   float64
	consumption  float64
	power        float64
	format       string
	save         bool
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the power demand of a charging site",
	Args:  cobra.NoArgs,
	RunE:  runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.IntVar(&estimateFlags.chargePoints, "charge-points", 20, "number of charge points")
	f.Float64Var(&estimateFlags.arrivalPct, "arrival", 100, "arrival probability in percent of the reference pattern")
	f.Float64Var(&estimateFlags.consumption, "consumption", 18, "car consumption in kWh/100km")
	f.Float64Var(&estimateFlags.power, "power", 11, "charging power per charge point in kW")
	f.StringVar(&estimateFlags.format, "format", "table", "output format: table, json or csv")
	f.BoolVar(&estimateFlags.save, "save", false, "persist the simulation; if saving fails the estimate is still printed and the command exits non-zero")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	switch estimateFlags.format {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unsupported format %q", estimateFlags.format)
	}
	in := model.SimulationInputs{
		ChargePointsCount: estimateFlags.chargePoints,
		ArrivalMultiplier: estimateFlags.arrivalPct / 100,
		CarConsumption:    estimateFlags.consumption,
		ChargingPower:     estimateFlags.power,
	}

	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		out     model.SimulationOutputs
		saved   *model.Simulation
		saveErr error
	)
	if estimateFlags.save {
		sim, err := svc.Create(cmd.Context(), in)
		switch {
		case err == nil:
			out, saved = sim.Outputs, &sim
		case errors.Is(err, simulation.ErrPersistence):
			// the estimate is still valid: show it, then fail the command
			out, saveErr = sim.Outputs, err
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: simulation not saved: %v\n", err)
		default:
			return err
		}
	} else if out, err = svc.Estimate(in); err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), in, out, saved); err != nil {
		return err
	}
	return saveErr
}

func render(w io.Writer, in model.SimulationInputs, out model.SimulationOutputs, saved *model.Simulation) error {
	switch estimateFlags.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if saved != nil {
			return enc.Encode(saved)
		}
		return enc.Encode(out)
	case "csv":
		if err := export.WriteSummaryCSV(w, in, out); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		return export.WriteCSV(w, out.HourlyData)
	}
	if saved != nil {
		if _, err := fmt.Fprintf(w, "saved simulation %s\n\n", saved.ID); err != nil {
			return err
		}
	}
	return writeTable(w, out)
}

func writeTable(w io.Writer, out model.SimulationOutputs) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Theoretical max power\t%.2f kW\n", out.TheoreticalMaxPower)
	fmt.Fprintf(tw, "Actual max power\t%.2f kW\n", out.ActualMaxPower)
	fmt.Fprintf(tw, "Concurrency factor\t%.2f %%\n", out.ConcurrencyFactor)
	if h, ok := estimator.PeakHour(out); ok {
		fmt.Fprintf(tw, "Peak hour\t%02d:00\n", h)
	}
	fmt.Fprintf(tw, "Energy charged per year\t%.0f kWh\n", out.TotalEnergyCharged)
	fmt.Fprintf(tw, "Charging events per year\t%d\n", out.TotalChargingEvents)
	fmt.Fprintf(tw, "Average charging duration\t%.2f min\n", out.AverageChargingDuration)
	fmt.Fprintf(tw, "Events per day/week/month\t%.0f / %.0f / %.0f\n", out.DailyEvents, out.WeeklyEvents, out.MonthlyEvents)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "HOUR\tDEMAND (kW)\tACTIVE")
	for _, h := range out.HourlyData {
		fmt.Fprintf(tw, "%02d:00\t%.2f\t%d\n", h.Hour, h.PowerDemand, h.ActiveChargePoints)
	}
	return tw.Flush()
}
