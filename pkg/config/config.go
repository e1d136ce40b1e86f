package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Filter policies.
const (
	PolicyRaw = "raw" // compare decoded value against the threshold directly
	PolicyEMA = "ema" // compare value minus its exponential moving average
)

// Actuator kinds.
const (
	ActuatorDry  = "dry"
	ActuatorMQTT = "mqtt"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Frame       FrameConfig       `yaml:"frame"`
	Filter      FilterConfig      `yaml:"filter"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"` // Bounds a single read so shutdown is observed
	FlushDelay  time.Duration `yaml:"flush_delay"`  // Input accumulated during this window is discarded
}

// FrameConfig describes the binary frame layout sent by the sensor.
type FrameConfig struct {
	SampleBytes int    `yaml:"sample_bytes"` // 2 = int16, 4 = float32
	Channels    int    `yaml:"channels"`
	ByteOrder   string `yaml:"byte_order"` // "little" or "big"
}

// FilterConfig contains decode, filter and threshold parameters.
type FilterConfig struct {
	Policy        string        `yaml:"policy"`
	Alpha         float64       `yaml:"alpha"`
	Threshold     float64       `yaml:"threshold"`
	DecodePeriod  time.Duration `yaml:"decode_period"`
	HistoryLength int           `yaml:"history_length"` // Rolling window per channel
}

// NavigationConfig contains keyboard grid and navigation cadence.
type NavigationConfig struct {
	StartDelay   time.Duration `yaml:"start_delay"`
	Settle       time.Duration `yaml:"settle"`      // Gate accumulation window after each tick
	ActionDelay  time.Duration `yaml:"action_delay"` // Pause after an action was issued
	MoveDuration time.Duration `yaml:"move_duration"`
	Rows         []RowConfig   `yaml:"rows"`
}

// RowConfig describes one keyboard row. Keys are laid out at X + i*Spacing, Y
// unless Points lists them explicitly.
type RowConfig struct {
	Length  int     `yaml:"length,omitempty"`
	X       float64 `yaml:"x,omitempty"`
	Y       float64 `yaml:"y,omitempty"`
	Spacing float64 `yaml:"spacing,omitempty"`
	Points  []Point `yaml:"points,omitempty"`
}

// Point is a screen coordinate or pixel offset.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// CalibrationConfig names the screen anchors resolved at session start.
type CalibrationConfig struct {
	OpenAnchor    string           `yaml:"open_anchor"`    // Clicked once before navigation, optional
	OriginAnchors []string         `yaml:"origin_anchors"` // First resolvable one becomes the grid origin
	Anchors       map[string]Point `yaml:"anchors"`
}

// ActuatorConfig selects where cursor commands are sent.
type ActuatorConfig struct {
	Kind string     `yaml:"kind"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains broker settings for the MQTT actuator.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains the observer endpoint configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Listen      string `yaml:"listen"`
	MetricsPath string `yaml:"metrics_path"`
	StreamPath  string `yaml:"stream_path"`
}

// MockConfig contains mock sensor configuration.
type MockConfig struct {
	Baseline      float64       `yaml:"baseline"`       // Resting level (ADC counts)
	NoiseLevel    float64       `yaml:"noise_level"`    // Noise amplitude (ADC counts)
	BurstLevel    float64       `yaml:"burst_level"`    // Amplitude added during a contraction
	BurstDuration time.Duration `yaml:"burst_duration"` // Contraction length
	BurstPeriod   time.Duration `yaml:"burst_period"`   // Time between contractions
	SampleRate    time.Duration `yaml:"sample_rate"`    // Frame interval
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "COM3", // Default for Windows, should be "/dev/ttyUSB0" on Linux
			BaudRate:    115200,
			ReadTimeout: 500 * time.Millisecond,
			FlushDelay:  time.Second,
		},
		Frame: FrameConfig{
			SampleBytes: 2,
			Channels:    2,
			ByteOrder:   "little",
		},
		Filter: FilterConfig{
			Policy:        PolicyEMA,
			Alpha:         0.3,
			Threshold:     200,
			DecodePeriod:  50 * time.Millisecond,
			HistoryLength: 100,
		},
		Navigation: NavigationConfig{
			StartDelay:   500 * time.Millisecond,
			Settle:       200 * time.Millisecond,
			ActionDelay:  200 * time.Millisecond,
			MoveDuration: 300 * time.Millisecond,
			Rows:         DefaultRows(),
		},
		Calibration: CalibrationConfig{
			OpenAnchor:    "keyboard_button",
			OriginAnchors: []string{"q", "q_cap"},
			Anchors:       map[string]Point{},
		},
		Actuator: ActuatorConfig{
			Kind: ActuatorDry,
			MQTT: MQTTConfig{
				Broker:  "tcp://localhost:1883",
				Topic:   "emgkb/cursor",
				QoS:     1,
				Timeout: 2 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Listen:      "127.0.0.1:8089",
			MetricsPath: "/metrics",
			StreamPath:  "/ws",
		},
		Mock: MockConfig{
			Baseline:      512,
			NoiseLevel:    20,
			BurstLevel:    400,
			BurstDuration: 400 * time.Millisecond,
			BurstPeriod:   3 * time.Second,
			SampleRate:    5 * time.Millisecond,
		},
	}
}

// DefaultRows returns the on-screen keyboard layout as pixel offsets from the
// "q" key: three letter rows and a bottom row of wide keys.
func DefaultRows() []RowConfig {
	return []RowConfig{
		{Length: 11, X: 0, Y: 0, Spacing: 105},
		{Length: 11, X: 35, Y: 95, Spacing: 105},
		{Length: 12, X: 0, Y: 190, Spacing: 105},
		{Points: []Point{{X: 105, Y: 290}, {X: 575, Y: 290}, {X: 960, Y: 290}, {X: 1085, Y: 290}}},
	}
}

// Offsets expands the row into per-key pixel offsets.
func (r RowConfig) Offsets() []Point {
	if len(r.Points) > 0 {
		out := make([]Point, len(r.Points))
		copy(out, r.Points)
		return out
	}
	out := make([]Point, r.Length)
	for i := range out {
		out[i] = Point{X: r.X + float64(i)*r.Spacing, Y: r.Y}
	}
	return out
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// Threshold is signed and zero is meaningful, so it is never replaced.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Frame.SampleBytes == 0 {
		c.Frame.SampleBytes = def.Frame.SampleBytes
	}
	if c.Frame.Channels == 0 {
		c.Frame.Channels = def.Frame.Channels
	}
	if c.Frame.ByteOrder == "" {
		c.Frame.ByteOrder = def.Frame.ByteOrder
	}

	if c.Filter.Policy == "" {
		c.Filter.Policy = def.Filter.Policy
	}
	c.Filter.Policy = strings.ToLower(strings.TrimSpace(c.Filter.Policy))
	if c.Filter.Alpha == 0 {
		c.Filter.Alpha = def.Filter.Alpha
	}
	if c.Filter.DecodePeriod == 0 {
		c.Filter.DecodePeriod = def.Filter.DecodePeriod
	}
	if c.Filter.HistoryLength == 0 {
		c.Filter.HistoryLength = def.Filter.HistoryLength
	}

	if c.Navigation.Settle == 0 {
		c.Navigation.Settle = def.Navigation.Settle
	}
	if c.Navigation.ActionDelay == 0 {
		c.Navigation.ActionDelay = def.Navigation.ActionDelay
	}
	if c.Navigation.MoveDuration == 0 {
		c.Navigation.MoveDuration = def.Navigation.MoveDuration
	}
	if len(c.Navigation.Rows) == 0 {
		c.Navigation.Rows = def.Navigation.Rows
	}

	if len(c.Calibration.OriginAnchors) == 0 {
		c.Calibration.OriginAnchors = def.Calibration.OriginAnchors
	}
	if c.Calibration.Anchors == nil {
		c.Calibration.Anchors = map[string]Point{}
	}

	if c.Actuator.Kind == "" {
		c.Actuator.Kind = def.Actuator.Kind
	}
	if c.Actuator.MQTT.Topic == "" {
		c.Actuator.MQTT.Topic = def.Actuator.MQTT.Topic
	}
	if c.Actuator.MQTT.Timeout == 0 {
		c.Actuator.MQTT.Timeout = def.Actuator.MQTT.Timeout
	}

	if c.Telemetry.Listen == "" {
		c.Telemetry.Listen = def.Telemetry.Listen
	}
	if c.Telemetry.MetricsPath == "" {
		c.Telemetry.MetricsPath = def.Telemetry.MetricsPath
	}
	if c.Telemetry.StreamPath == "" {
		c.Telemetry.StreamPath = def.Telemetry.StreamPath
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.BurstPeriod == 0 {
		c.Mock.BurstPeriod = def.Mock.BurstPeriod
	}
	if c.Mock.BurstDuration == 0 {
		c.Mock.BurstDuration = def.Mock.BurstDuration
	}
}

// Validate checks that all settings are within acceptable ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout must not be negative, got %v", c.Serial.ReadTimeout))
	}

	if c.Frame.SampleBytes != 2 && c.Frame.SampleBytes != 4 {
		errs = append(errs, fmt.Errorf("frame.sample_bytes must be 2 or 4, got %d", c.Frame.SampleBytes))
	}
	if c.Frame.Channels < 1 {
		errs = append(errs, fmt.Errorf("frame.channels must be at least 1, got %d", c.Frame.Channels))
	}
	if c.Frame.ByteOrder != "little" && c.Frame.ByteOrder != "big" {
		errs = append(errs, fmt.Errorf("frame.byte_order must be little or big, got %q", c.Frame.ByteOrder))
	}

	if c.Filter.Policy != PolicyRaw && c.Filter.Policy != PolicyEMA {
		errs = append(errs, fmt.Errorf("filter.policy must be %q or %q, got %q", PolicyRaw, PolicyEMA, c.Filter.Policy))
	}
	if c.Filter.Alpha <= 0 || c.Filter.Alpha > 1 {
		errs = append(errs, fmt.Errorf("filter.alpha must be in (0, 1], got %v", c.Filter.Alpha))
	}
	if c.Filter.DecodePeriod <= 0 {
		errs = append(errs, fmt.Errorf("filter.decode_period must be positive, got %v", c.Filter.DecodePeriod))
	}
	if c.Filter.HistoryLength < 1 {
		errs = append(errs, fmt.Errorf("filter.history_length must be at least 1, got %d", c.Filter.HistoryLength))
	}

	if c.Navigation.Settle <= 0 {
		errs = append(errs, fmt.Errorf("navigation.settle must be positive, got %v", c.Navigation.Settle))
	}
	if len(c.Navigation.Rows) == 0 {
		errs = append(errs, errors.New("navigation.rows must not be empty"))
	}
	for i, row := range c.Navigation.Rows {
		if len(row.Offsets()) == 0 {
			errs = append(errs, fmt.Errorf("navigation.rows[%d] has no keys", i))
		}
	}

	if len(c.Calibration.OriginAnchors) == 0 {
		errs = append(errs, errors.New("calibration.origin_anchors must not be empty"))
	}

	switch c.Actuator.Kind {
	case ActuatorDry:
	case ActuatorMQTT:
		if c.Actuator.MQTT.Broker == "" {
			errs = append(errs, errors.New("actuator.mqtt.broker is required for the mqtt actuator"))
		}
		if c.Actuator.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("actuator.mqtt.qos must be 0, 1 or 2, got %d", c.Actuator.MQTT.QoS))
		}
	default:
		errs = append(errs, fmt.Errorf("actuator.kind must be %q or %q, got %q", ActuatorDry, ActuatorMQTT, c.Actuator.Kind))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
