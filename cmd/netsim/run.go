package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/monitoring"
	"github.com/sarchlab/netsim/scenario"
	"github.com/sarchlab/netsim/simulation"
)

var (
	runConfigPath  string
	runStopTime    float64
	runSeed        int64
	runRecord      string
	runMonitor     bool
	runMonitorPort int
	runOpenBrowser bool
	runTraceStdout bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario and print a summary",
	Long: "run builds the scenario given by --config, or the built-in " +
		"CloudBiz scenario, runs it until its stop time and prints what " +
		"every application saw.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(runConfigPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("seed") {
			cfg.Seed = runSeed
		}
		if cmd.Flags().Changed("stop") {
			cfg.StopTime = runStopTime
		}

		if runTraceStdout {
			shutdown, err := monitoring.InitStdoutTracing("netsim", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()
		}

		b, err := builderFromFlags(cmd)
		if err != nil {
			return err
		}

		sc, err := cfg.Build(b)
		if err != nil {
			return err
		}

		if url := sc.Sim.MonitorURL(); url != "" && runOpenBrowser {
			if err := browser.OpenURL(url); err != nil {
				slog.Warn("opening browser failed", "url", url, "err", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			sc.Sim.Stop()
		}()

		runErr := sc.Run()
		if err := sc.Sim.Terminate(); err != nil && runErr == nil {
			runErr = err
		}
		if runErr != nil {
			return runErr
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderReport(sc.Report()))

		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runConfigPath, "config", "", "scenario file; the built-in CloudBiz scenario when empty")
	f.Float64Var(&runStopTime, "stop", 0, "override the stop time in simulated seconds")
	f.Int64Var(&runSeed, "seed", simulation.DefaultSeed, "override the random seed")
	f.StringVar(&runRecord, "record", "", "store traces in <record>.sqlite3")
	f.BoolVar(&runMonitor, "monitor", false, "serve the monitoring API while running")
	f.IntVar(&runMonitorPort, "monitor-port", 0, "monitoring port; defaults to $"+envMonitorPort+" or a random port")
	f.BoolVar(&runOpenBrowser, "open-browser", false, "open the monitor in a browser")
	f.BoolVar(&runTraceStdout, "trace-stdout", false, "print OpenTelemetry spans to stderr")
}

func loadConfig(path string) (*scenario.Config, error) {
	if path == "" {
		return scenario.Default(), nil
	}

	return scenario.Load(path)
}

func builderFromFlags(cmd *cobra.Command) (simulation.Builder, error) {
	b := simulation.MakeBuilder().WithLogger(slog.Default())

	if runRecord != "" {
		b = b.WithOutputFileName(runRecord)
	}

	if !runMonitor {
		return b, nil
	}

	port := runMonitorPort
	if !cmd.Flags().Changed("monitor-port") {
		p, err := envInt(envMonitorPort, 0)
		if err != nil {
			return b, fmt.Errorf("%s: %w", envMonitorPort, err)
		}
		port = p
	}

	return b.WithMonitor().WithMonitorPort(port), nil
}
