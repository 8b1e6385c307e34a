package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/bugtracker/internal/calib"
	"github.com/banshee-data/bugtracker/internal/db"
	"github.com/banshee-data/bugtracker/internal/fsutil"
	"github.com/banshee-data/bugtracker/internal/iris"
	"github.com/banshee-data/bugtracker/internal/monitoring"
	"github.com/banshee-data/bugtracker/internal/plot"
	"github.com/banshee-data/bugtracker/internal/processor"
	"github.com/banshee-data/bugtracker/internal/targetid"
)

var (
	processInput     string
	processFormat    string
	processNoCatalog bool
)

var processCmd = &cobra.Command{
	Use:   "process <radar_id>",
	Short: "Filter every scan set in the input directory",
	Long: `Loads the calibration for radar_id, then for each scan set in the input
directory detects contaminated zones, masks them together with the clutter
map, writes <netcdf_dir>/YYYYMMDD_HHMM.nc and records the run in the catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// metrics registers with the default registry, which allows it only once.
var metrics = sync.OnceValue(monitoring.NewMetrics)

func init() {
	processCmd.Flags().StringVar(&processInput, "input", "", "Directory of scan set dumps (default input_dirs.iris)")
	processCmd.Flags().StringVar(&processFormat, "format", "iris", "Input format: iris, odim or nexrad")
	processCmd.Flags().BoolVar(&processNoCatalog, "no-catalog", false, "Do not record runs in the catalog")
}

func runProcess(cmd *cobra.Command, args []string) error {
	radarID := args[0]
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	g, err := gridFromFlags()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fs := fsutil.OSFileSystem{}
	store := calib.NewStore(calib.NewLocator(cfg.GetCacheDir(), fs))
	opts := []processor.Option{
		processor.WithGrid(g),
		processor.WithFileSystem(fs),
		processor.WithMetrics(metrics()),
		processor.WithPlotter(plot.NewRadialPlotter(cfg.GetPlotDir(), cfg.GetMaxRange(), g, fs)),
	}

	if !processNoCatalog {
		dbPath := cfg.GetDatabasePath()
		if err := fs.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return err
		}
		catalog, err := db.NewDB(dbPath)
		if err != nil {
			return err
		}
		defer catalog.Close()
		opts = append(opts, processor.WithRecorder(catalog))
	}

	var p processor.Processor
	switch processFormat {
	case "iris":
		p, err = processor.NewIrisProcessor(cfg, radarID, store, opts...)
	case "odim":
		p, err = processor.NewOdimProcessor(cfg, radarID, store, opts...)
	case "nexrad":
		p, err = processor.NewNexradProcessor(cfg, radarID, store, opts...)
	default:
		return fmt.Errorf("unknown format %q", processFormat)
	}
	if err != nil {
		return err
	}

	input := processInput
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
	logger.Info("processing scan sets", zap.String("radar_id", radarID), zap.Int("sets", len(paths)))

	reports, err := p.ProcessSets(ctx, paths)
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "%s  %s  convol %d/%d  dopvol %d/%d  bugs %d\n",
			r.ScanTime.UTC().Format("2006-01-02 15:04"), r.OutputPath,
			r.Convol.Flagged, r.Convol.Zones, r.Dopvol.Flagged, r.Dopvol.Zones,
			r.Targets[targetid.Bugs])
	}
	return err
}
