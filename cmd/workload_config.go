package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ring-sim/ring-sim/sim"
	"github.com/ring-sim/ring-sim/sim/workload"
)

var (
	// Synthetic workload flags, used when neither --workload nor --preset is given
	rate         float64       // Bearer arrivals per second, split evenly across slices
	gbrFraction  float64       // Fraction of GBR bearers
	meanHolding  time.Duration // Mean bearer holding time
	downlinkRate string        // Downlink bit rate per bearer
	uplinkRate   string        // Uplink bit rate per bearer
	activity     float64       // Fraction of the rate actually carried
	maxBearers   int           // Cap on generated bearers (0 = horizon only)
)

func addSyntheticFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&rate, "rate", 1.0, "Bearer arrivals per second")
	cmd.Flags().Float64Var(&gbrFraction, "gbr-fraction", 0.5, "Fraction of GBR bearers")
	cmd.Flags().DurationVar(&meanHolding, "mean-holding", time.Minute, "Mean bearer holding time")
	cmd.Flags().StringVar(&downlinkRate, "downlink", "5M", "Downlink bit rate per bearer")
	cmd.Flags().StringVar(&uplinkRate, "uplink", "1M", "Uplink bit rate per bearer")
	cmd.Flags().Float64Var(&activity, "activity", 1.0, "Fraction of the requested rate bearers actually carry")
	cmd.Flags().IntVar(&maxBearers, "max-bearers", 0, "Maximum number of bearers (0 = until the horizon)")
}

// loadWorkload resolves the workload from --workload, --preset or the synthetic
// flags, in that order, and validates it against the network.
func loadWorkload(cmd *cobra.Command, net *sim.NetworkConfig) *workload.WorkloadSpec {
	var spec *workload.WorkloadSpec
	var err error
	switch {
	case workloadPath != "":
		spec, err = workload.LoadWorkloadSpec(workloadPath)
	case presetName != "":
		spec, err = presetWorkload(defaultsFilePath, presetName)
	default:
		spec, err = syntheticWorkload(net)
	}
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if cmd.Flags().Changed("seed") || (workloadPath == "" && presetName == "") {
		spec.Seed = seed
	}
	if cmd.Flags().Changed("max-bearers") {
		spec.MaxBearers = maxBearers
	}
	if err := spec.ValidateFor(net); err != nil {
		logrus.Fatalf("Invalid workload: %v", err)
	}
	return spec
}

// syntheticWorkload builds one Poisson bearer class per slice from the CLI flags.
func syntheticWorkload(net *sim.NetworkConfig) (*workload.WorkloadSpec, error) {
	down, err := sim.ParseBitRate(downlinkRate)
	if err != nil {
		return nil, err
	}
	up, err := sim.ParseBitRate(uplinkRate)
	if err != nil {
		return nil, err
	}
	spec := &workload.WorkloadSpec{MaxBearers: maxBearers}
	perSlice := rate / float64(len(net.Slices))
	for _, s := range net.Slices {
		spec.Classes = append(spec.Classes, workload.BearerClass{
			ID:          s.Name,
			Slice:       s.ID,
			Rate:        perSlice,
			Arrival:     workload.ArrivalSpec{Process: "poisson"},
			MeanHolding: meanHolding,
			GBRFraction: gbrFraction,
			Downlink:    workload.RateRange{Min: down, Max: down},
			Uplink:      workload.RateRange{Min: up, Max: up},
			Activity:    activity,
		})
	}
	return spec, nil
}
