package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ring-sim/ring-sim/sim"
	"github.com/ring-sim/ring-sim/sim/workload"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a network config and, optionally, a workload against it",
	Run: func(cmd *cobra.Command, args []string) {
		net := loadNetwork()
		fmt.Printf("network: %d switches, %s links, guard band %s, %d slices, strategy %q\n",
			net.Topology.Switches, net.Topology.LinkCapacity, net.Topology.GuardBand,
			len(net.Slices), net.Routing.Strategy)
		for _, s := range net.Slices {
			fmt.Printf("  slice %d %-12s priority %d quota %5.1f%% (%s) sharing=%v\n",
				s.ID, s.Name, s.Priority, s.QuotaPercent, sim.BitRate(s.QuotaBitRate(int64(net.Topology.LinkCapacity))), s.Sharing)
		}
		if workloadPath == "" {
			return
		}
		spec, err := workload.LoadWorkloadSpec(workloadPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := spec.ValidateFor(net); err != nil {
			logrus.Fatalf("Invalid workload %s: %v", workloadPath, err)
		}
		fmt.Printf("workload: %d classes, seed %d\n", len(spec.Classes), spec.Seed)
	},
}

func init() {
	validateCmd.Flags().StringVar(&configPath, "config", "", "Network config YAML")
	validateCmd.Flags().StringVar(&workloadPath, "workload", "", "Workload spec YAML")
	rootCmd.AddCommand(validateCmd)
}
