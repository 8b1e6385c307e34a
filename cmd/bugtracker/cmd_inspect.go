package main

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/ctessum/sparse"
	"github.com/spf13/cobra"

	"github.com/banshee-data/bugtracker/internal/output"
	"github.com/banshee-data/bugtracker/internal/targetid"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.nc>",
	Short: "Summarise an output file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	ds, err := output.Read(args[0])
	if err != nil {
		return err
	}
	printDataset(cmd.OutOrStdout(), ds)
	return nil
}

func printDataset(w io.Writer, ds *output.Dataset) {
	fmt.Fprintf(w, "radar_id:  %s (%s)\n", ds.RadarID, ds.Name)
	fmt.Fprintf(w, "filetype:  %s\n", ds.FileType)
	fmt.Fprintf(w, "datetime:  %s\n", ds.DateTime)
	fmt.Fprintf(w, "version:   %s\n", ds.Version)
	fmt.Fprintf(w, "location:  %.4f, %.4f\n", ds.Latitude, ds.Longitude)
	fmt.Fprintf(w, "dbz_elevs: %v\n", ds.DBZElevs)
	if ds.DopElevs != nil {
		fmt.Fprintf(w, "dop_elevs: %v\n", ds.DopElevs)
	}
	fmt.Fprintf(w, "dbz_filtered:   %v, %d masked\n", ds.DBZFiltered.Shape, countNaN(ds.DBZFiltered))
	fmt.Fprintf(w, "dbz_unfiltered: %v, %d masked\n", ds.DBZUnfiltered.Shape, countNaN(ds.DBZUnfiltered))
	fmt.Fprintf(w, "dbz_joint:      %v, %d masked\n", ds.Joint.Shape, countNaN(ds.Joint))

	if ds.TargetID == nil {
		fmt.Fprintln(w, "target_id: not written")
		return
	}
	counts := targetid.Counts(ds.TargetID)
	codes := make([]targetid.Code, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	fmt.Fprintln(w, "target_id:")
	for _, c := range codes {
		fmt.Fprintf(w, "  %-8s %d\n", c, counts[c])
	}
}

func countNaN(a *sparse.DenseArray) int {
	n := 0
	for _, v := range a.Elements {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
