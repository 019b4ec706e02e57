// Command balancer runs the bitrate controller against one SRT-shaped
// transport session: PIPELINE_FILE HOST PORT, with the balancer, transport,
// encoder, and overlay wired from the flags below.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"srtbalance/internal/balancer/registry"
	"srtbalance/internal/clock"
	"srtbalance/internal/config"
	"srtbalance/internal/encoder"
	"srtbalance/internal/loop"
	"srtbalance/internal/obsmetrics"
	"srtbalance/internal/overlay"
	"srtbalance/internal/runner"
	"srtbalance/internal/telemetry"
	"srtbalance/internal/transport/quicsrt"
	"srtbalance/internal/version"
)

var (
	flagVersion       bool
	flagConfigFile    string
	flagPresentOffset int
	flagStreamID      string
	flagLatencyMS     int
	flagReducedPkt    bool
	flagBitrateFile   string
	flagAlgorithm     string
	flagDumpConfig    bool
	flagPrometheus    string
	flagOverlay       string
)

func main() {
	root := &cobra.Command{
		Use:   "balancer PIPELINE_FILE HOST PORT",
		Short: "Adaptive bitrate controller for a live SRT-shaped video session",
		Args: func(cmd *cobra.Command, args []string) error {
			if flagVersion {
				return nil
			}
			return cobra.ExactArgs(3)(cmd, args)
		},
		RunE: run,
	}

	root.Flags().BoolVarP(&flagVersion, "version", "v", false, "print version and exit")
	root.Flags().StringVarP(&flagConfigFile, "config", "c", "", "configuration file")
	root.Flags().IntVarP(&flagPresentOffset, "offset", "d", 0, "audio/video presentation offset in ms, [-10000,10000]")
	root.Flags().StringVarP(&flagStreamID, "stream-id", "s", "", "opaque session identifier")
	root.Flags().IntVarP(&flagLatencyMS, "latency", "l", 2000, "requested transport latency in ms, [100,10000]")
	root.Flags().BoolVarP(&flagReducedPkt, "reduced", "r", false, "use the reduced 6-packet frame size")
	root.Flags().StringVarP(&flagBitrateFile, "bitrate-file", "b", "", "legacy two-line min/max bitrate file")
	root.Flags().StringVarP(&flagAlgorithm, "algorithm", "a", "", "balancer algorithm override")
	root.Flags().BoolVar(&flagDumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")
	root.Flags().StringVar(&flagPrometheus, "prometheus-addr", "", "address for an optional /metrics HTTP endpoint")
	root.Flags().StringVar(&flagOverlay, "overlay", "", "overlay render mode: line or table (overrides config)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "balancer:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Println(version.String())
		return nil
	}
	if flagPresentOffset < -10000 || flagPresentOffset > 10000 {
		return fmt.Errorf("offset %dms out of range [-10000,10000]", flagPresentOffset)
	}
	if flagLatencyMS < 100 || flagLatencyMS > 10000 {
		return fmt.Errorf("latency %dms out of range [100,10000]", flagLatencyMS)
	}

	pipelineFile, host, portStr := args[0], args[1], args[2]
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	if _, err := os.Stat(pipelineFile); err != nil {
		return fmt.Errorf("pipeline file: %w", err)
	}

	cfg := config.Default()
	loadConfig := func() (config.Config, error) { return config.Default(), nil }
	if flagConfigFile != "" {
		loadConfig = func() (config.Config, error) { return config.Load(flagConfigFile) }
		c, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c
	}
	if flagBitrateFile != "" {
		minBps, maxBps, err := config.LoadLegacyBitrateFile(flagBitrateFile)
		if err != nil {
			return fmt.Errorf("legacy bitrate file: %w", err)
		}
		cfg = cfg.WithBounds(minBps, maxBps)
	}
	if flagOverlay != "" {
		cfg.Observability.OverlayMode = config.OverlayMode(flagOverlay)
	}
	if flagPrometheus != "" {
		cfg.Observability.PrometheusAddr = flagPrometheus
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if flagDumpConfig {
		return dumpConfig(cfg)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	pktSize := config.DefaultSRTPktSize
	if flagReducedPkt {
		pktSize = config.DefaultSRTPktSizeSmall
	}

	reg := registry.NewDefault()
	rn, err := runner.New(reg, cfg.ToBalancerConfig(), cfg.BalancerName, flagAlgorithm)
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}

	var metricsExporter *obsmetrics.Exporter
	if cfg.Observability.PrometheusAddr != "" {
		metricsExporter = obsmetrics.NewExporter()
		if err := metricsExporter.Serve(cfg.Observability.PrometheusAddr); err != nil {
			return fmt.Errorf("prometheus: %w", err)
		}
		logger.Info("prometheus endpoint listening", zap.String("addr", cfg.Observability.PrometheusAddr))
	}

	var overlayAdapter overlay.Adapter
	switch cfg.Observability.OverlayMode {
	case config.OverlayTable:
		overlayAdapter = overlay.NewTable(os.Stdout, 60)
	default:
		overlayAdapter = overlay.NewLine(os.Stdout)
	}

	var rttHist *obsmetrics.RTTHistogram
	if cfg.Observability.HDRLogIntervalMS > 0 {
		rttHist = obsmetrics.NewRTTHistogram(logger, time.Duration(cfg.Observability.HDRLogIntervalMS)*time.Millisecond)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    "srtbalance",
		ServiceVersion: version.Version,
		SampleRatio:    1,
	})
	var loopTracer loop.Tracer
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
		loopTracer = telemetry.NoOp{}
	} else {
		loopTracer = tracer
		defer tracer.Shutdown(context.Background())
	}

	l := loop.New(loop.Options{
		Logger:       logger,
		Clock:        clock.NewMonotonic(),
		Dialer:       quicsrt.NewDialer(logger),
		Host:         host,
		Port:         port,
		StreamID:     flagStreamID,
		LatencyMS:    int64(flagLatencyMS),
		PktSize:      pktSize,
		Runner:       rn,
		Encoder:      encoder.NewLogging(logger, encoder.UnitBitsPerSecond),
		Overlay:      overlayAdapter,
		Config:       cfg,
		LoadConfig:   loadConfig,
		Metrics:      metricsExporter,
		RTTHistogram: rttHist,
		Tracer:       loopTracer,
	})

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			l.RequestReload()
		}
	}()

	return l.Run(ctx)
}

func dumpConfig(cfg config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("dump-config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
