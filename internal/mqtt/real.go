package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/ambient-theme/internal/sensor"
)

// Config selects the broker and topic carrying illuminance.
type Config struct {
	Broker         string // e.g. tcp://192.168.1.200:1883
	Topic          string // e.g. zigbee2mqtt/hallway-sensor
	Field          string // JSON path to the lux value, DefaultField when empty
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

// Provider implements sensor.Provider for a broker topic.
type Provider struct {
	cfg Config
}

// New creates a Provider. No connection is made until Start.
func New(cfg Config) *Provider {
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ambient-theme"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Provider{cfg: cfg}
}

// Probe reports whether a broker and topic are configured.
func (p *Provider) Probe() bool {
	return p.cfg.Broker != "" && p.cfg.Topic != ""
}

// Open validates the broker address and builds an unconnected client.
func (p *Provider) Open() (sensor.Handle, error) {
	u, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("parse broker: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse broker: %q is not a URL like tcp://host:1883", p.cfg.Broker)
	}

	h := &Handle{cfg: p.cfg}
	opts := paho.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetConnectTimeout(p.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(h.connectionLost).
		SetOnConnectHandler(h.connected)

	h.client = paho.NewClient(opts)
	return h, nil
}

// Handle is a subscribed broker connection.
type Handle struct {
	client paho.Client
	cfg    Config

	// mu serialises callbacks between paho's router and connection goroutines.
	mu         sync.Mutex
	onReading  func(float64)
	onError    func(error)
	subscribed bool
	closed     bool
}

// SetOnReading registers the reading callback.
func (h *Handle) SetOnReading(fn func(float64)) {
	h.mu.Lock()
	h.onReading = fn
	h.mu.Unlock()
}

// SetOnError registers the error callback.
func (h *Handle) SetOnError(fn func(error)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

// Start connects and subscribes, failing if either does not complete in time.
func (h *Handle) Start() error {
	token := h.client.Connect()
	if !token.WaitTimeout(h.cfg.ConnectTimeout) {
		// The client keeps connecting in the background; stop it.
		h.client.Disconnect(0)
		return fmt.Errorf("connect to broker: timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	if err := h.subscribe(); err != nil {
		h.client.Disconnect(250)
		return err
	}

	h.mu.Lock()
	h.subscribed = true
	h.mu.Unlock()

	log.Info().
		Str("broker", h.cfg.Broker).
		Str("topic", h.cfg.Topic).
		Str("field", h.cfg.Field).
		Msg("mqtt light sensor subscribed")
	return nil
}

func (h *Handle) subscribe() error {
	token := h.client.Subscribe(h.cfg.Topic, h.cfg.QoS, h.handleMessage)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", h.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.cfg.Topic, err)
	}
	return nil
}

// handleMessage turns a broker message into a reading or a runtime error.
func (h *Handle) handleMessage(_ paho.Client, msg paho.Message) {
	lux, err := ParsePayload(msg.Payload(), h.cfg.Field)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if err != nil {
		if h.onError != nil {
			h.onError(fmt.Errorf("topic %s: %w", msg.Topic(), err))
		}
		return
	}
	if h.onReading != nil {
		h.onReading(lux)
	}
}

func (h *Handle) connectionLost(_ paho.Client, err error) {
	log.Warn().Err(err).Str("broker", h.cfg.Broker).Msg("mqtt connection lost")

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.onError == nil {
		return
	}
	if err == nil {
		err = errors.New("unknown reason")
	}
	h.onError(fmt.Errorf("mqtt connection lost: %w", err))
}

// connected re-subscribes after paho reconnects; the first subscribe is done by Start.
func (h *Handle) connected(_ paho.Client) {
	h.mu.Lock()
	resubscribe := h.subscribed && !h.closed
	h.mu.Unlock()
	if !resubscribe {
		return
	}

	log.Info().Str("broker", h.cfg.Broker).Msg("mqtt reconnected")
	go func() {
		if err := h.subscribe(); err != nil {
			h.mu.Lock()
			defer h.mu.Unlock()
			if !h.closed && h.onError != nil {
				h.onError(err)
			}
		}
	}()
}

// Close unsubscribes and disconnects.
func (h *Handle) Close() error {
	h.mu.Lock()
	wasSubscribed := h.subscribed
	h.closed = true
	h.onReading = nil
	h.onError = nil
	h.mu.Unlock()

	if h.client == nil {
		return nil
	}
	if wasSubscribed && h.client.IsConnectionOpen() {
		h.client.Unsubscribe(h.cfg.Topic).WaitTimeout(time.Second)
	}
	// Disconnect also stops a connect or reconnect still in progress.
	h.client.Disconnect(250)
	return nil
}
