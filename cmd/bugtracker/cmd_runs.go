package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bugtracker/internal/db"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [radar_id]",
	Short: "List processed scan sets from the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list, 0 for all")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	radarID := ""
	if len(args) == 1 {
		radarID = args[0]
	}

	catalog, err := db.NewDB(cfg.GetDatabasePath())
	if err != nil {
		return err
	}
	defer catalog.Close()

	runs, err := catalog.ListRuns(context.Background(), radarID, runsLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %s  convol %d/%d  dopvol %d/%d  masked %.1f%%  %s\n",
			r.ID, r.RadarID, r.ScanTime.Format("2006-01-02 15:04"),
			r.ConvolFlagged, r.ConvolZones, r.DopvolFlagged, r.DopvolZones,
			100*r.MaskedFraction, r.OutputPath)
	}
	return nil
}
