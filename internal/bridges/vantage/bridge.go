package vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

const (
	defaultQoS            byte = 1
	defaultCommandTimeout      = 30 * time.Second
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Refresher performs an on-demand refresh of a station entry.
type Refresher interface {
	Refresh(ctx context.Context, entryID string) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Station is what the bridge needs to announce one configured entry.
type Station struct {
	EntryID  string
	Device   station.DeviceInfo
	Entities []*sensor.Entity
}

// Config holds bridge settings.
type Config struct {
	Client MQTTClient

	// DiscoveryPrefix is the Home Assistant discovery root.
	// Default: "homeassistant".
	DiscoveryPrefix string

	// QoS for every publish. Default: 1.
	QoS byte

	// Refresher handles refresh commands. Commands are ignored when nil.
	Refresher Refresher

	Logger Logger
}

// Bridge maps station entities and readings onto MQTT topics.
type Bridge struct {
	client MQTTClient
	prefix string
	qos    byte
	logger Logger
	topics mqtt.Topics

	refresher   Refresher
	refresherMu sync.RWMutex

	mu       sync.RWMutex
	stations map[string][]string // entry id -> announced unique ids
}

// NewBridge creates a bridge. Call Start to subscribe to commands.
func NewBridge(cfg Config) *Bridge {
	qos := cfg.QoS
	if qos == 0 {
		qos = defaultQoS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		client:    cfg.Client,
		prefix:    cfg.DiscoveryPrefix,
		qos:       qos,
		refresher: cfg.Refresher,
		logger:    logger,
		stations:  make(map[string][]string),
	}
}

// SetRefresher sets the handler for refresh commands.
func (b *Bridge) SetRefresher(r Refresher) {
	b.refresherMu.Lock()
	b.refresher = r
	b.refresherMu.Unlock()
}

// Start subscribes to refresh commands for all stations.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllRefreshCommands(), b.qos, b.handleRefreshCommand); err != nil {
		return fmt.Errorf("subscribing to refresh commands: %w", err)
	}
	return nil
}

// AnnounceStation publishes one discovery config per entity.
func (b *Bridge) AnnounceStation(st Station) error {
	device := newDiscoveryDevice(st.Device)
	ids := make([]string, 0, len(st.Entities))

	for _, e := range st.Entities {
		msg := DiscoveryMessage{
			Name:              e.Name(),
			UniqueID:          e.UniqueID(),
			StateTopic:        b.topics.State(st.EntryID),
			ValueTemplate:     fmt.Sprintf("{{ value_json.state.%s }}", e.Key()),
			AvailabilityTopic: b.topics.Availability(st.EntryID),
			Unit:              e.Unit(),
			DeviceClass:       string(e.DeviceClass()),
			StateClass:        string(e.StateClass()),
			Icon:              e.Icon(),
			Device:            device,
		}
		if err := b.publishJSON(b.topics.Discovery(b.prefix, e.UniqueID()), msg, true); err != nil {
			return fmt.Errorf("announcing %s: %w", e.UniqueID(), err)
		}
		ids = append(ids, e.UniqueID())
	}

	b.mu.Lock()
	b.stations[st.EntryID] = ids
	b.mu.Unlock()

	b.logger.Info("station announced", "entry_id", st.EntryID, "entities", len(ids))
	return nil
}

// PublishState publishes the retained state document for a station.
func (b *Bridge) PublishState(entryID string, readings []sensor.Reading, at time.Time) error {
	return b.publishJSON(b.topics.State(entryID), NewStateMessage(entryID, readings, at), true)
}

// PublishAvailability publishes the retained online/offline flag.
func (b *Bridge) PublishAvailability(entryID string, online bool) error {
	payload := mqtt.PayloadOffline
	if online {
		payload = mqtt.PayloadOnline
	}
	return b.publish(b.topics.Availability(entryID), []byte(payload), true)
}

// RemoveStation marks the station offline and clears its retained
// discovery configs and state so the host drops the entities.
func (b *Bridge) RemoveStation(entryID string) error {
	b.mu.Lock()
	ids := b.stations[entryID]
	delete(b.stations, entryID)
	b.mu.Unlock()

	if err := b.PublishAvailability(entryID, false); err != nil {
		return err
	}
	for _, id := range ids {
		if err := b.publish(b.topics.Discovery(b.prefix, id), nil, true); err != nil {
			return fmt.Errorf("clearing discovery %s: %w", id, err)
		}
	}
	if err := b.publish(b.topics.State(entryID), nil, true); err != nil {
		return fmt.Errorf("clearing state: %w", err)
	}

	b.logger.Info("station removed", "entry_id", entryID, "entities", len(ids))
	return nil
}

// HasStation reports whether entryID has been announced.
func (b *Bridge) HasStation(entryID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.stations[entryID]
	return ok
}

func (b *Bridge) handleRefreshCommand(topic string, _ []byte) error {
	entryID, ok := b.topics.EntryIDFromCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, topic)
	}
	if !b.HasStation(entryID) {
		return fmt.Errorf("%w: %s", ErrUnknownStation, entryID)
	}
	b.refresherMu.RLock()
	refresher := b.refresher
	b.refresherMu.RUnlock()
	if refresher == nil {
		return nil
	}

	b.logger.Debug("refresh requested over mqtt", "entry_id", entryID)

	ctx, cancel := context.WithTimeout(context.Background(), defaultCommandTimeout)
	defer cancel()
	if err := refresher.Refresh(ctx, entryID); err != nil {
		return fmt.Errorf("refreshing %s: %w", entryID, err)
	}
	return nil
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	return b.publish(topic, payload, retained)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	return b.client.Publish(topic, payload, b.qos, retained)
}
