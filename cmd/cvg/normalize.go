package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chakssp/convergd/pkg/normalize"
)

var (
	normalizeMethod string
	calibrationMin  float64
	calibrationMax  float64
	calibrationMed  float64
)

// normalizeCmd rescales a raw similarity score locally
var normalizeCmd = &cobra.Command{
	Use:   "normalize <raw-score>",
	Short: "Normalize a raw similarity score to the 0-100 scale",
	Long: `Normalize a raw similarity score to the 0-100 scale.

Runs entirely in-process. The calibration defaults to the production
range (0.1-45.0, median 21.5); override with the calibration flags.

Methods:
  linear      proportional rescale across the calibrated range
  percentile  anchors the calibrated median at 50

Examples:
  cvg normalize 21.5
  cvg normalize 30 --method linear
  cvg normalize 12 --min 0 --max 60 --median 24`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	defaults := normalize.DefaultCalibration()
	normalizeCmd.Flags().StringVar(&normalizeMethod, "method", string(normalize.MethodPercentile), "normalization method (linear or percentile)")
	normalizeCmd.Flags().Float64Var(&calibrationMin, "min", defaults.Min, "calibrated minimum raw score")
	normalizeCmd.Flags().Float64Var(&calibrationMax, "max", defaults.Max, "calibrated maximum raw score")
	normalizeCmd.Flags().Float64Var(&calibrationMed, "median", defaults.Median, "calibrated median raw score")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	raw, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid raw score %q: %w", args[0], err)
	}

	method, err := normalize.ParseMethod(normalizeMethod)
	if err != nil {
		return err
	}

	svc, err := normalize.NewService(
		normalize.WithMethod(method),
		normalize.WithCalibration(normalize.Calibration{
			Min:    calibrationMin,
			Max:    calibrationMax,
			Median: calibrationMed,
		}),
	)
	if err != nil {
		return err
	}

	return printJSON(svc.Normalize(raw, method))
}
