package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itohio/emgkb/pkg/actuator"
	"github.com/itohio/emgkb/pkg/calibrate"
	"github.com/itohio/emgkb/pkg/config"
	"github.com/itohio/emgkb/pkg/frame"
	"github.com/itohio/emgkb/pkg/recovery"
	"github.com/itohio/emgkb/pkg/sample"
	"github.com/itohio/emgkb/pkg/sensor"
	"github.com/itohio/emgkb/pkg/session"
)

type options struct {
	configPath string
	port       string
	baud       int
	mock       bool
	threshold  float64
	policy     string
	actuator   string
	telemetry  bool
	listen     string
	anchors    []string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "emgkb",
		Short: "Drive an on-screen keyboard with EMG muscle activations",
		Long: `emgkb reads a two channel EMG sensor over a serial port, filters out the
baseline and turns muscle contractions into keyboard navigation:
channel 1 moves right, channel 0 moves down, both together select.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "configuration file path")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every decoded sample")

	f := cmd.Flags()
	f.StringVarP(&opts.port, "port", "p", "", "serial port override (e.g., COM3 or /dev/ttyACM0)")
	f.IntVarP(&opts.baud, "baud", "b", 0, "baud rate override")
	f.BoolVar(&opts.mock, "mock", false, "use a simulated sensor instead of the serial port")
	f.Float64Var(&opts.threshold, "threshold", 0, "activation threshold override")
	f.StringVar(&opts.policy, "policy", "", "filter policy override (raw or ema)")
	f.StringVar(&opts.actuator, "actuator", "", "actuator override (dry or mqtt)")
	f.BoolVar(&opts.telemetry, "telemetry", false, "serve metrics and the live stream")
	f.StringVar(&opts.listen, "listen", "", "telemetry listen address override")
	f.StringArrayVar(&opts.anchors, "anchor", nil, "screen anchor as name=x,y (repeatable)")

	cmd.AddCommand(newPortsCmd(), newConfigCmd(opts))
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyOverrides(cmd, cfg, opts); err != nil {
		return err
	}

	if opts.verbose {
		sample.Debugf = log.Printf
	}

	src, err := newSource(cfg, opts.mock)
	if err != nil {
		return err
	}

	id := session.NewID()
	act, err := actuator.New(cfg.Actuator, id)
	if err != nil {
		return err
	}
	defer recovery.HandlePanicFunc(func() { closeActuator(act) })

	s, err := session.New(cfg, session.Deps{
		ID:       id,
		Source:   src,
		Actuator: act,
		Anchors:  calibrate.NewStatic(cfg.Calibration.Anchors),
	})
	if err != nil {
		closeActuator(act)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// closeActuator releases an actuator the session never took ownership of.
func closeActuator(act actuator.Actuator) {
	if c, ok := act.(actuator.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Warning: failed to close actuator: %v", err)
		}
	}
}

// applyOverrides copies explicitly set flags over the file configuration.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	flags := cmd.Flags()

	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if flags.Changed("baud") {
		cfg.Serial.BaudRate = opts.baud
	}
	if flags.Changed("threshold") {
		cfg.Filter.Threshold = opts.threshold
	}
	if opts.policy != "" {
		cfg.Filter.Policy = strings.ToLower(opts.policy)
	}
	if opts.actuator != "" {
		cfg.Actuator.Kind = strings.ToLower(opts.actuator)
	}
	if flags.Changed("telemetry") {
		cfg.Telemetry.Enabled = opts.telemetry
	}
	if opts.listen != "" {
		cfg.Telemetry.Listen = opts.listen
	}

	for _, a := range opts.anchors {
		name, p, err := parseAnchor(a)
		if err != nil {
			return err
		}
		if cfg.Calibration.Anchors == nil {
			cfg.Calibration.Anchors = map[string]config.Point{}
		}
		cfg.Calibration.Anchors[name] = p
	}
	return nil
}

// parseAnchor parses "name=x,y".
func parseAnchor(s string) (string, config.Point, error) {
	name, coords, ok := strings.Cut(s, "=")
	xs, ys, ok2 := strings.Cut(coords, ",")
	name = strings.TrimSpace(name)
	if !ok || !ok2 || name == "" {
		return "", config.Point{}, fmt.Errorf("anchor %q must look like name=x,y", s)
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return "", config.Point{}, fmt.Errorf("anchor %q: bad x: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return "", config.Point{}, fmt.Errorf("anchor %q: bad y: %w", s, err)
	}
	return name, config.Point{X: x, Y: y}, nil
}

func newSource(cfg *config.Config, mock bool) (sensor.Source, error) {
	if !mock {
		return sensor.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.ReadTimeout), nil
	}
	codec, err := frame.NewCodec(cfg.Frame.SampleBytes, cfg.Frame.Channels, cfg.Frame.ByteOrder)
	if err != nil {
		return nil, err
	}
	log.Printf("Using simulated sensor")
	return sensor.NewMock(&cfg.Mock, codec), nil
}
