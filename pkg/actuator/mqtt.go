package actuator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/itohio/emgkb/pkg/config"
)

// ErrTimeout is returned when the broker does not acknowledge a command in time.
var ErrTimeout = errors.New("mqtt publish timed out")

// Command operations understood by the cursor agent.
const (
	OpMoveTo       = "move_to"
	OpMoveRelative = "move_relative"
	OpClick        = "click"
)

// Command is the JSON payload published for every action.
type Command struct {
	Op         string  `json:"op"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	Seq        uint64  `json:"seq"`
	Session    string  `json:"session"`
}

// MQTT publishes cursor commands to an agent running on the machine that
// shows the keyboard.
type MQTT struct {
	client  mqtt.Client
	cfg     config.MQTTConfig
	session string

	mu  sync.Mutex
	seq uint64
}

// DialMQTT connects to the broker in cfg.
func DialMQTT(cfg config.MQTTConfig, session string) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("emgkb_" + uuid.NewString()[:8])

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	log.Printf("MQTT: Publishing cursor commands to %s on %s", cfg.Topic, cfg.Broker)
	return NewMQTT(client, cfg, session), nil
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, cfg config.MQTTConfig, session string) *MQTT {
	return &MQTT{client: client, cfg: cfg, session: session}
}

func (m *MQTT) MoveTo(x, y float64, d time.Duration) error {
	return m.publish(Command{Op: OpMoveTo, X: x, Y: y, DurationMS: d.Milliseconds()})
}

func (m *MQTT) MoveRelative(dx, dy float64, d time.Duration) error {
	return m.publish(Command{Op: OpMoveRelative, X: dx, Y: dy, DurationMS: d.Milliseconds()})
}

func (m *MQTT) Click() error {
	return m.publish(Command{Op: OpClick})
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

func (m *MQTT) publish(cmd Command) error {
	m.mu.Lock()
	m.seq++
	cmd.Seq = m.seq
	m.mu.Unlock()
	cmd.Session = m.session

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Op, err)
	}

	token := m.client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.Timeout) {
		return fmt.Errorf("publish %s: %w", cmd.Op, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", cmd.Op, err)
	}
	return nil
}
