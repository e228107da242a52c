package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/gravtree/internal/gravstore"
)

// plotBenchResult is the teacher's plotRun, repurposed: instead of a state
// trajectory against time, it plots a sorted acceleration-magnitude
// histogram for the run that was just saved, with gonum/stat's summary
// statistics printed alongside it.
func plotBenchResult(st *gravstore.Store, runID string) error {
	mags, err := st.LoadAccelerationMagnitudes(runID)
	if err != nil {
		return err
	}
	if len(mags) == 0 {
		return fmt.Errorf("no data to plot")
	}

	mean, std := stat.MeanStdDev(mags, nil)
	fmt.Printf("n=%d  min=%.6g  max=%.6g  mean=%.6g  stddev=%.6g\n",
		len(mags), floats.Min(mags), floats.Max(mags), mean, std)

	hist := histogram(mags, 40)
	graph := asciigraph.Plot(hist,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("acceleration magnitude histogram (%s)", runID)),
	)
	fmt.Println(graph)
	fmt.Println()
	return nil
}

// histogram buckets values into nbins equal-width bins across their
// observed range and returns the per-bin counts as float64 for asciigraph.
func histogram(values []float64, nbins int) []float64 {
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	counts := make([]float64, nbins)
	for _, v := range values {
		bin := int((v - lo) / span * float64(nbins))
		if bin >= nbins {
			bin = nbins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}
	return counts
}
