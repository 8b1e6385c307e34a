package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bugtracker/internal/calib"
	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/iris"
	"github.com/banshee-data/bugtracker/internal/monitoring"
)

var (
	calibInput  string
	calibLat    float64
	calibLon    float64
	calibHeight float64
	calibStart  string
	calibHours  float64
)

var calibCmd = &cobra.Command{
	Use:   "calib <radar_id>",
	Short: "Build a calibration artifact from clear-air scan sets",
	Long: `Projects the grid from the radar location and counts, for every cell, how
often reflectivity exceeds clutter.dbz_threshold across the scan sets in the
input directory. Cells above clutter.coverage_threshold become clutter.
Scan sets whose elevation angles differ from the first set are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalib,
}

func init() {
	calibCmd.Flags().StringVar(&calibInput, "input", "", "Directory of clear-air scan set dumps (default input_dirs.iris)")
	calibCmd.Flags().Float64Var(&calibLat, "lat", 0, "Radar latitude in degrees")
	calibCmd.Flags().Float64Var(&calibLon, "lon", 0, "Radar longitude in degrees")
	calibCmd.Flags().Float64Var(&calibHeight, "height", 0, "Antenna height in meters")
	calibCmd.Flags().StringVar(&calibStart, "start", "", "Start of the calibration period, recorded as calib_start")
	calibCmd.Flags().Float64Var(&calibHours, "hours", 0, "Length of the calibration period in hours")
}

func runCalib(cmd *cobra.Command, args []string) error {
	radarID := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	g, err := gridFromFlags()
	if err != nil {
		return err
	}

	fs := fsutil.OSFileSystem{}
	input := calibInput
	if input == "" {
		input = cfg.GetIrisInputDir()
	}
	paths, err := iris.List(fs, input)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scan sets in %s", input)
	}

	var convol, dopvol *calib.ClutterCounter
	var convolElevs, dopvolElevs []float64
	threshold := cfg.GetClutterDBZThreshold()
	for _, path := range paths {
		d, err := iris.Load(fs, path, g)
		if err != nil {
			return err
		}
		if convol == nil {
			convolElevs, dopvolElevs = d.ConvolElevs, d.DopvolElevs
			convol = calib.NewClutterCounter("convol", convolElevs, g, threshold)
			dopvol = calib.NewClutterCounter("dopvol", dopvolElevs, g, threshold)
		}
		if !slices.Equal(d.ConvolElevs, convolElevs) || !slices.Equal(d.DopvolElevs, dopvolElevs) {
			monitoring.Logf("skipping %s: elevation angles differ from the first set", path)
			convol.Exclude()
			dopvol.Exclude()
			continue
		}
		if err := convol.Add(d.Convol); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := dopvol.Add(d.Dopvol); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	coverage := cfg.GetClutterCoverage()
	convolFam, err := convol.Family(coverage)
	if err != nil {
		return err
	}
	dopvolFam, err := dopvol.Family(coverage)
	if err != nil {
		return err
	}

	data := calib.FlatGeometry(radarID, g, calibLat, calibLon, calibHeight)
	data.Start = calibStart
	data.Hours = calibHours

	loc := calib.NewLocator(cfg.GetCacheDir(), fs)
	if err := loc.EnsureDir(); err != nil {
		return err
	}
	path := loc.Path(radarID, g)
	if err := calib.Write(fs, path, data, convolFam, dopvolFam); err != nil {
		return err
	}

	counted, excluded := convol.Scans()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s from %d scan sets (%d skipped): %d convol and %d dopvol clutter cells\n",
		path, counted, excluded, convolFam.Clutter.Count(), dopvolFam.Clutter.Count())
	return nil
}
