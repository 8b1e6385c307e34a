package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bugtracker/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a configuration with every default, rooted at dir",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
	}
	if err := config.DefaultConfig(abs).Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}

// runConfigShow prints the resolved value of every setting.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	effective := map[string]interface{}{
		"plot_dir":      cfg.GetPlotDir(),
		"netcdf_dir":    cfg.GetNetCDFDir(),
		"cache_dir":     cfg.GetCacheDir(),
		"database_path": cfg.GetDatabasePath(),
		"input_dirs":    map[string]string{"iris": cfg.GetIrisInputDir()},
		"clutter": map[string]float64{
			"dbz_threshold":      cfg.GetClutterDBZThreshold(),
			"coverage_threshold": cfg.GetClutterCoverage(),
		},
		"precip": map[string]interface{}{
			"azim_region":           cfg.GetAzimRegion(),
			"gate_region":           cfg.GetGateRegion(),
			"max_dbz_per_degree":    cfg.GetMaxDBZPerDegree(),
			"max_dbz_per_km":        cfg.GetMaxDBZPerKm(),
			"abscissa":              cfg.GetAbscissa(),
			"exclude_masked":        cfg.GetExcludeMasked(),
			"weight_per_angle":      cfg.GetWeightPerAngle(),
			"copy_convol_to_dopvol": cfg.GetCopyConvolToDopvol(),
		},
		"processing":    map[string]float64{"joint_cutoff": cfg.GetJointCutoff()},
		"plot_settings": map[string]interface{}{"enabled": cfg.GetPlotEnabled(), "max_range": cfg.GetMaxRange()},
	}
	data, err := json.MarshalIndent(effective, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
