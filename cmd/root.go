package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ring-sim/ring-sim/sim"
	"github.com/ring-sim/ring-sim/sim/metering"
	"github.com/ring-sim/ring-sim/sim/registry"
	"github.com/ring-sim/ring-sim/sim/trace"
	"github.com/ring-sim/ring-sim/sim/workload"
)

const defaultHorizon = 10 * time.Minute

var (
	// Inputs
	configPath       string        // Network config YAML; empty = built-in defaults
	workloadPath     string        // Workload spec YAML
	presetName       string        // Named workload preset from defaults.yaml
	defaultsFilePath string        // Path to defaults.yaml
	seed             int64         // Seed for bearer generation
	horizon          time.Duration // Simulated time; 0 = workload horizon or 10m
	logLevel         string        // Log verbosity level

	// Outputs
	resultsPath  string // JSON metrics output
	traceLevel   string // Decision trace level
	registryKind string // Bearer registry backend
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ring-sim",
	Short: "Resource manager simulator for sliced SDN ring networks",
}

// runCmd executes the discrete-event simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ring resource manager simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		net := loadNetwork()
		spec := loadWorkload(cmd, net)
		h := resolveHorizon(spec)
		bearers, err := workload.GenerateBearers(spec, net.Topology.Switches, sim.Ticks(h))
		if err != nil {
			logrus.Fatalf("Failed to generate bearers: %v", err)
		}
		logrus.Infof("Starting simulation: %d bearers over %v, strategy %q, seed %d",
			len(bearers), h, net.Routing.Strategy, spec.Seed)

		meters := metering.NewRecorder()
		s, err := sim.NewSimulator(sim.SimConfig{
			Network:    *net,
			Horizon:    sim.Ticks(h),
			TraceLevel: trace.TraceLevel(traceLevel),
		}, newRegistry(), meters)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		for _, b := range bearers {
			s.InjectBearer(b)
		}

		startTime := time.Now()
		s.Run()
		logrus.Infof("Simulation took %v, %d meter commands issued", time.Since(startTime), meters.Updates())

		s.Metrics.Print()
		if s.Trace != nil {
			printTraceSummary(trace.Summarize(s.Trace))
		}
		if resultsPath != "" {
			if err := s.Metrics.SaveResults(resultsPath); err != nil {
				logrus.Fatalf("Failed to save results: %v", err)
			}
			logrus.Infof("Results written to %s", resultsPath)
		}
		logrus.Info("Simulation complete.")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadNetwork reads --config, or returns the built-in defaults when unset.
func loadNetwork() *sim.NetworkConfig {
	if configPath == "" {
		cfg := sim.DefaultNetworkConfig()
		return &cfg
	}
	cfg, err := sim.LoadNetworkConfig(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid network config %s: %v", configPath, err)
	}
	return cfg
}

func resolveHorizon(spec *workload.WorkloadSpec) time.Duration {
	switch {
	case horizon > 0:
		return horizon
	case spec.Horizon > 0:
		return spec.Horizon
	default:
		return defaultHorizon
	}
}

func newRegistry() sim.BearerRegistry {
	switch registryKind {
	case "map":
		return sim.NewMapRegistry()
	case "memdb":
		r, err := registry.New()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		return r
	default:
		logrus.Fatalf("Unknown registry %q; valid: map, memdb", registryKind)
		return nil
	}
}

func printTraceSummary(ts *trace.TraceSummary) {
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Decisions      : %d (admitted %d, blocked %d, inverted %d)\n",
		ts.TotalDecisions, ts.AdmittedCount, ts.BlockedCount, ts.InvertedCount)
	for reason, n := range ts.BlockReasons {
		fmt.Printf("  blocked %-28s: %d\n", reason, n)
	}
	fmt.Printf("Extra granted  : %s\n", sim.BitRate(ts.ExtraGranted))
	fmt.Printf("Extra reclaimed: %s\n", sim.BitRate(ts.ExtraReclaimed))
	fmt.Printf("Meter updates  : %d\n", ts.MeterUpdates)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addInputFlags registers the flags shared by run and live.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Network config YAML (topology, slices, routing, arbitration)")
	cmd.Flags().StringVar(&workloadPath, "workload", "", "Workload spec YAML")
	cmd.Flags().StringVar(&presetName, "preset", "", "Workload preset name from defaults.yaml")
	cmd.Flags().StringVar(&defaultsFilePath, "defaults", "defaults.yaml", "Path to defaults.yaml")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for bearer generation (overrides the workload seed when set)")
	cmd.Flags().DurationVar(&horizon, "horizon", 0, "Simulated time (0 = workload horizon, else 10m)")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&registryKind, "registry", "map", "Bearer registry backend (map, memdb)")
	addSyntheticFlags(cmd)
}

// init sets up CLI flags and subcommands
func init() {
	addInputFlags(runCmd)
	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write metrics JSON to this file")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions, all)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
