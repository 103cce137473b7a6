// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// crmac-ns simulates cognitive-radio mmWave nodes sharing a set of channels with primary users.
package main

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/crmac/crmac-ns/cli"
	"github.com/crmac/crmac-ns/grpcapi"
	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/metrics"
	"github.com/crmac/crmac-ns/progctx"
	"github.com/crmac/crmac-ns/simulation"
)

type MainArgs struct {
	Id          int
	Seed        int64
	Duration    time.Duration
	Channels    []int
	Single      bool
	OutputDir   string
	Pcap        bool
	Energy      bool
	Stats       bool
	KpiFile     string
	LogLevel    string
	MetricsAddr string
	GrpcAddr    string
	HistoryFile string
}

var args MainArgs

var rootCmd = &cobra.Command{
	Use:           "crmac-ns",
	Short:         "Cognitive-radio mmWave MAC network simulator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario in batch mode and save its KPIs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, posArgs []string) error {
		return runBatch(cmd, posArgs[0])
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console [scenario.yaml]",
	Short: "Start the interactive console, optionally loading a scenario",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, posArgs []string) error {
		scenario := ""
		if len(posArgs) > 0 {
			scenario = posArgs[0]
		}
		return runConsole(cmd, scenario)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&args.Id, "id", 0, "simulation id, used as prefix of output files")
	pf.Int64Var(&args.Seed, "seed", simulation.DefaultSeed, "random seed")
	pf.IntSliceVar(&args.Channels, "channels", nil, "operating channels, overrides the scenario")
	pf.BoolVar(&args.Single, "single-channel", false, "run Intra only, on the first channel")
	pf.StringVarP(&args.OutputDir, "output", "o", simulation.DefaultOutputDir, "output directory")
	pf.BoolVar(&args.Pcap, "pcap", false, "capture frames into a pcap file")
	pf.BoolVar(&args.Energy, "energy", false, "save energy reports")
	pf.BoolVar(&args.Stats, "stats", false, "log MAC state counts to a CSV file")
	pf.StringVar(&args.LogLevel, "log", "warn", "log level: micro, trace, debug, info, note, warn, error or off")
	pf.StringVar(&args.MetricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&args.GrpcAddr, "grpc", "", "serve the gRPC status service on this address, e.g. :9000")

	runCmd.Flags().DurationVarP(&args.Duration, "duration", "d", 0, "virtual run time, overrides the scenario")
	runCmd.Flags().StringVar(&args.KpiFile, "kpi", "", "extra KPI file; the extension selects json, yaml or cbor")

	consoleCmd.Flags().StringVar(&args.HistoryFile, "history", "", "console history file")

	rootCmd.AddCommand(runCmd, consoleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// newConfig builds the simulation config from the scenario network section and the flags. Flags that
// were set explicitly take precedence.
func newConfig(cmd *cobra.Command, scenario *simulation.YamlConfigFile) (*simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if scenario != nil {
		scenario.NetworkConfig.ApplyNetwork(cfg)
	}

	level, err := logger.ParseLevelString(args.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Id = args.Id
	cfg.OutputDir = args.OutputDir
	cfg.DumpPackets = args.Pcap
	cfg.SaveEnergy = args.Energy
	cfg.SaveStats = args.Stats

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = args.Seed
	}
	if flags.Changed("channels") {
		cfg.Channels = args.Channels
	}
	if flags.Changed("single-channel") {
		cfg.MultiChannel = !args.Single
	}
	if flags.Changed("duration") {
		cfg.Duration = uint64(args.Duration / time.Microsecond)
	}
	return cfg, nil
}

func loadScenario(fn string) (*simulation.YamlConfigFile, error) {
	if fn == "" {
		return nil, nil
	}
	return simulation.LoadScenario(fn)
}

// setup creates the simulation with its scenario and starts the optional metrics and gRPC servers.
func setup(ctx *progctx.ProgCtx, cmd *cobra.Command, scenarioFile string) (*simulation.Simulation, *cli.CmdRunner, error) {
	scenario, err := loadScenario(scenarioFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := newConfig(cmd, scenario)
	if err != nil {
		return nil, nil, err
	}

	var collector *metrics.Collector
	if args.MetricsAddr != "" || args.GrpcAddr != "" {
		if collector, err = metrics.NewCollector(nil); err != nil {
			return nil, nil, err
		}
	}

	sim, err := simulation.NewSimulation(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	sim.SetMetrics(collector)
	rt := cli.NewCmdRunner(ctx, sim)

	if args.MetricsAddr != "" {
		serveMetrics(ctx, args.MetricsAddr, collector)
	}
	if args.GrpcAddr != "" {
		if err = grpcapi.NewServer(sim, rt, collector).Run(ctx, args.GrpcAddr); err != nil {
			_ = sim.Stop()
			return nil, nil, err
		}
	}

	if scenario != nil {
		if err = sim.ImportScenario(scenario); err != nil {
			logger.Warnf("%v", err)
		}
	}
	return sim, rt, nil
}

func serveMetrics(ctx *progctx.ProgCtx, addr string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx.Defer(func() {
		_ = srv.Close()
	})
	ctx.Go("metrics-server", func() {
		logger.Infof("metrics served on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server stopped: %v", err)
		}
	})
}

func runBatch(cmd *cobra.Command, scenarioFile string) error {
	ctx := progctx.New(context.Background())
	ctx.HandleSignals(syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer ctx.Wait()
	defer ctx.Cancel(nil)

	sim, _, err := setup(ctx, cmd, scenarioFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = sim.Stop()
	}()

	start := time.Now()
	err = sim.Run()
	if err != nil && !errors.Is(err, simulation.CommandInterruptedError) {
		return err
	}
	if args.KpiFile != "" {
		if err := sim.SaveKpi(args.KpiFile); err != nil {
			return err
		}
	}
	kpi := sim.Kpi()
	logger.Infof("run %s: %d us virtual time in %v, delivery ratio %.3f", sim.RunId(), sim.Now(),
		time.Since(start), kpi.Network.DeliveryRatio)
	return err
}

func runConsole(cmd *cobra.Command, scenarioFile string) error {
	ctx := progctx.New(context.Background())
	ctx.HandleSignals(syscall.SIGTERM, syscall.SIGHUP)
	defer ctx.Wait()
	defer ctx.Cancel(nil)

	sim, rt, err := setup(ctx, cmd, scenarioFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = sim.Stop()
	}()

	ctx.Defer(func() {
		_ = os.Stdin.Close()
	})
	logger.SetStdoutCallback(cli.Cli)

	options := cli.DefaultCliOptions()
	options.HistoryFile = args.HistoryFile
	err = cli.Cli.Run(rt, options)
	ctx.Cancel(errors.Wrapf(err, "console exit"))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
