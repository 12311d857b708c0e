package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var simulationsCmd = &cobra.Command{
	Use:     "simulations",
	Aliases: []string{"sims"},
	Short:   "Manage saved simulations",
}

var simulationsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List saved simulations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSimulationsLs,
}

var simulationsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a saved simulation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulationsGet,
}

var simulationsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a saved simulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulationsRm,
}

func init() {
	simulationsCmd.AddCommand(simulationsLsCmd, simulationsGetCmd, simulationsRmCmd)
	rootCmd.AddCommand(simulationsCmd)
}

func runSimulationsLs(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sims, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPOINTS\tPOWER (kW)\tPEAK (kW)\tCONCURRENCY (%)")
	for _, s := range sims {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%.2f\t%.2f\n",
			s.ID, s.CreatedAt.Format(time.RFC3339), s.Inputs.ChargePointsCount,
			s.Inputs.ChargingPower, s.Outputs.ActualMaxPower, s.Outputs.ConcurrencyFactor)
	}
	return tw.Flush()
}

func runSimulationsGet(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sim, err := svc.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("simulation %s: %w", args[0], err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sim)
}

func runSimulationsRm(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("simulation %s: %w", args[0], err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return err
}
