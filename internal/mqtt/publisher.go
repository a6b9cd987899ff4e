package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/config"
)

// StatsSource provides runtime data for state publishing. The concrete
// adapter is wired in main.go so this package does not depend on the
// servers.
type StatsSource interface {
	// Uptime returns the process uptime.
	Uptime() time.Duration
	// Version returns the software version string.
	Version() string
	// Model returns the configured generator model.
	Model() string
	// RelayPeers returns the number of connected relay peers.
	RelayPeers() int
}

// publisher is the subset of the connection manager used to send
// messages.
type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// Publisher manages the MQTT connection and runs a periodic loop that
// pushes state updates to the broker.
type Publisher struct {
	cfg      config.MQTTConfig
	counters *DailyCounters
	stats    StatsSource
	logger   *slog.Logger
	cm       *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection and publish loop.
func New(cfg config.MQTTConfig, counters *DailyCounters, stats StatsSource, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:      cfg,
		counters: counters,
		stats:    stats,
		logger:   logger,
	}
}

// Start connects to the MQTT broker and begins the periodic publish
// loop. It blocks until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "menuagent-" + p.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop publishes "offline" and disconnects. ctx bounds both.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) baseTopic() string {
	return "menuagent/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) publishAvailability(ctx context.Context, cm publisher, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	if interval <= 0 {
		interval = config.DefaultPublishInterval * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishStates(ctx, p.cm)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishStates(ctx, p.cm)
		}
	}
}

// states renders the current state payload per entity.
func (p *Publisher) states() map[string]string {
	counts := p.counters.Snapshot()

	states := map[string]string{
		"uptime":         p.stats.Uptime().Truncate(time.Second).String(),
		"version":        p.stats.Version(),
		"model":          p.stats.Model(),
		"relay_peers":    strconv.Itoa(p.stats.RelayPeers()),
		"requests_today": strconv.FormatInt(counts.Requests, 10),
		"tokens_today":   strconv.FormatInt(counts.InputTokens+counts.OutputTokens, 10),
		"last_request":   "never",
	}
	if !counts.LastRequest.IsZero() {
		states["last_request"] = counts.LastRequest.Format(time.RFC3339)
	}

	outcomes, err := json.Marshal(counts.ByOutcome)
	if err != nil {
		p.logger.Error("mqtt marshal outcome counts", "error", err)
	} else {
		states["outcomes_today"] = string(outcomes)
	}
	return states
}

func (p *Publisher) publishStates(ctx context.Context, cm publisher) {
	if cm == nil {
		return
	}

	states := p.states()
	for entity, value := range states {
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed", "entity", entity, "error", err)
		}
	}

	p.logger.Debug("mqtt states published", "entities", len(states))
}
