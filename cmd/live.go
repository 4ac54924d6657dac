package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"code.cloudfoundry.org/clock"
	events "github.com/docker/go-events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ring-sim/ring-sim/sim"
	"github.com/ring-sim/ring-sim/sim/controlplane"
	"github.com/ring-sim/ring-sim/sim/metering"
	"github.com/ring-sim/ring-sim/sim/workload"
)

var (
	speedup     float64 // Wall-clock compression factor
	metricsAddr string  // Prometheus listen address
)

// liveCmd replays the workload through the control plane on the wall clock
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Replay a workload through the live control plane",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if speedup <= 0 {
			logrus.Fatalf("--speedup must be positive, got %f", speedup)
		}

		net := loadNetwork()
		spec := loadWorkload(cmd, net)
		h := resolveHorizon(spec)
		bearers, err := workload.GenerateBearers(spec, net.Topology.Switches, sim.Ticks(h))
		if err != nil {
			logrus.Fatalf("Failed to generate bearers: %v", err)
		}

		// Timers run at the compressed rate too
		scaled := *net
		scaled.Arbitration.Interval = scaleDuration(net.Arbitration.Interval)
		scaled.Arbitration.SampleInterval = scaleDuration(net.Arbitration.SampleInterval)

		reg := prometheus.NewRegistry()
		recorder := metering.NewRecorder()
		meters := metering.NewSinkProgrammer(events.NewBroadcaster(recorder, metering.LogSink{}))
		ctrl, err := controlplane.New(controlplane.Config{
			Network:    scaled,
			Registerer: reg,
			Registry:   newRegistry(),
			Meters:     meters,
		})
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logrus.Errorf("metrics server: %v", err)
				}
			}()
			defer srv.Close()
			logrus.Infof("Serving metrics on %s/metrics", metricsAddr)
		}

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- ctrl.Run(runCtx) }()

		logrus.Infof("Replaying %d bearers over %v at %.0fx", len(bearers), h, speedup)
		m, err := controlplane.Replay(ctx, ctrl, clock.NewClock(), bearers, sim.Ticks(h), speedup)
		if err != nil && !errors.Is(err, context.Canceled) {
			logrus.Fatalf("Replay failed: %v", err)
		}
		if links, err := ctrl.Links(ctx); err == nil {
			m.Links = links
		}
		cancel()
		<-done
		if err := meters.Close(); err != nil {
			logrus.Warnf("closing meter queue: %v", err)
		}

		m.Print()
		logrus.Infof("%d meter commands issued, %d meters programmed", recorder.Updates(), len(recorder.Snapshot()))
	},
}

func scaleDuration(d time.Duration) time.Duration {
	if d == 0 {
		return 0
	}
	return max(time.Duration(float64(d)/speedup), time.Millisecond)
}

func init() {
	addInputFlags(liveCmd)
	liveCmd.Flags().Float64Var(&speedup, "speedup", 1.0, "Wall-clock compression factor (10 = ten times faster than real time)")
	liveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")

	rootCmd.AddCommand(liveCmd)
}
