// Command bugtracker masks insect and clutter contamination in weather radar
// scans and writes the filtered volumes to NetCDF.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/bugtracker/internal/config"
	"github.com/banshee-data/bugtracker/internal/grid"
	"github.com/banshee-data/bugtracker/internal/iris"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/version"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Grid overrides, defaulting to the IRIS grid
	gridAzimuths int
	gridGates    int
	gridAzimStep float64
	gridGateStep float64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bugtracker",
	Short: "Mask insect and clutter contamination in weather radar scans",
	Long: `bugtracker reads IRIS CONVOL/DOPVOL scan sets, flags azimuth/gate zones whose
reflectivity rises steeply with elevation angle, merges them with the radar's
calibrated clutter map and writes the filtered volumes to NetCDF.

Each radar needs a calibration artifact first, see "bugtracker calib".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = monitoring.NewLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		monitoring.SetZap(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path to the JSON configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Human-readable debug logging")

	def := iris.Grid()
	for _, cmd := range []*cobra.Command{processCmd, calibCmd} {
		cmd.Flags().IntVar(&gridAzimuths, "azimuths", def.Azimuths, "Azimuth rays in the grid")
		cmd.Flags().IntVar(&gridGates, "gates", def.Gates, "Gates per ray")
		cmd.Flags().Float64Var(&gridAzimStep, "azim-step", def.AzimStep, "Azimuth step in degrees")
		cmd.Flags().Float64Var(&gridGateStep, "gate-step", def.GateStep, "Gate step in meters")
	}

	rootCmd.AddCommand(processCmd, calibCmd, inspectCmd, runsCmd, migrateCmd, configCmd, versionCmd)
}

// loadConfig reads --config. A missing file at the default path falls back to
// built-in defaults; a missing file the user named is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		monitoring.Logf("no config at %s, using defaults", configPath)
		return config.EmptyConfig(), nil
	}
	return nil, err
}

func gridFromFlags() (grid.Geometry, error) {
	return grid.NewGeometry(gridAzimuths, gridGates, gridAzimStep, gridGateStep)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
