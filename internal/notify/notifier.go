package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/config"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

const (
	// sendTimeout bounds one notification attempt including retries.
	sendTimeout = 60 * time.Second
	// channelInterval limits channel activity messages per channel.
	channelInterval = 250 * time.Millisecond
)

// DetectionNotifier forwards detections to the configured webhook, email and
// MQTT channels. Alerts are filtered by kind and rate limited per kind. It
// implements engine.Observer; delivery runs on separate goroutines.
type DetectionNotifier struct {
	cfg *config.Config

	// limitMu protects the rate limiters. It is taken on the capture thread
	// and is never held across I/O.
	limitMu  sync.Mutex
	interval time.Duration
	limiters map[audio.EventKind]*rate.Limiter
	channels map[audio.Channel]*rate.Limiter

	graphMu     sync.Mutex
	graphClient *GraphClient

	// mqttMu serializes broker dials; only delivery goroutines wait on it.
	mqttMu  sync.Mutex
	mqtt    *MQTTPublisher
	mqttCfg types.MQTTConfig

	dial     dialFunc
	dispatch func(fn func())
	now      func() time.Time
}

// NewDetectionNotifier returns a DetectionNotifier configured with the given config.
func NewDetectionNotifier(cfg *config.Config) *DetectionNotifier {
	return &DetectionNotifier{
		cfg:      cfg,
		limiters: make(map[audio.EventKind]*rate.Limiter),
		channels: make(map[audio.Channel]*rate.Limiter),
		dial:     dialPaho,
		dispatch: func(fn func()) { go fn() },
		now:      time.Now,
	}
}

// InvalidateGraphClient clears the cached Graph client.
// Call this when Graph configuration changes.
func (n *DetectionNotifier) InvalidateGraphClient() {
	n.graphMu.Lock()
	n.graphClient = nil
	n.graphMu.Unlock()
}

// Close releases the MQTT connection.
func (n *DetectionNotifier) Close() {
	n.mqttMu.Lock()
	p := n.mqtt
	n.mqtt = nil
	n.mqttMu.Unlock()
	if p != nil {
		p.Close()
	}
}

// allow reports whether an alert of kind may be sent now.
func (n *DetectionNotifier) allow(kind audio.EventKind, interval time.Duration) bool {
	n.limitMu.Lock()
	defer n.limitMu.Unlock()

	if interval != n.interval {
		n.interval = interval
		clear(n.limiters)
	}
	lim, ok := n.limiters[kind]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		n.limiters[kind] = lim
	}
	return lim.AllowN(n.now(), 1)
}

func (n *DetectionNotifier) allowChannel(ch audio.Channel) bool {
	n.limitMu.Lock()
	defer n.limitMu.Unlock()

	lim, ok := n.channels[ch]
	if !ok {
		lim = rate.NewLimiter(rate.Every(channelInterval), 1)
		n.channels[ch] = lim
	}
	return lim.AllowN(n.now(), 1)
}

// AudioEventDetected implements engine.Observer.
func (n *DetectionNotifier) AudioEventDetected(d audio.Detection) {
	cfg := n.cfg.Snapshot()

	if !cfg.HasWebhook() && !cfg.HasGraph() && !cfg.HasMQTT() {
		return
	}
	if kinds := cfg.AlertKindSet(); len(kinds) > 0 && !kinds[d.Kind] {
		return
	}
	if !n.allow(d.Kind, cfg.MinInterval()) {
		return
	}

	if cfg.HasWebhook() {
		n.dispatch(func() { n.sendDetectionWebhook(cfg.WebhookURL, &d) })
	}
	if cfg.HasGraph() {
		graphCfg := cfg.Graph
		n.dispatch(func() { n.sendDetectionEmail(&graphCfg, &d) })
	}
	if cfg.HasMQTT() {
		mqttCfg := cfg.MQTT
		n.dispatch(func() { n.publishDetection(&mqttCfg, &d) })
	}
}

// LeftChannelActive implements engine.Observer.
func (n *DetectionNotifier) LeftChannelActive(at time.Time) {
	n.channelActive(audio.ChannelLeft, at)
}

// RightChannelActive implements engine.Observer.
func (n *DetectionNotifier) RightChannelActive(at time.Time) {
	n.channelActive(audio.ChannelRight, at)
}

// DeviceChanged implements engine.Observer. Device changes are not alerted.
func (n *DetectionNotifier) DeviceChanged(string) {}

func (n *DetectionNotifier) channelActive(ch audio.Channel, at time.Time) {
	cfg := n.cfg.MQTTConfig()
	if cfg.Broker == "" || !cfg.ChannelEvents || !n.allowChannel(ch) {
		return
	}
	n.dispatch(func() {
		util.LogNotifyResult(func() error {
			p, err := n.mqttPublisher(&cfg)
			if err != nil {
				return err
			}
			return p.PublishChannel(ch, at)
		}, ChannelMQTT)
	})
}

func (n *DetectionNotifier) sendDetectionWebhook(webhookURL string, d *audio.Detection) {
	util.LogNotifyResult(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return SendDetectionWebhook(ctx, webhookURL, d)
	}, ChannelWebhook)
}

func (n *DetectionNotifier) sendDetectionEmail(cfg *GraphConfig, d *audio.Detection) {
	util.LogNotifyResult(func() error {
		client, err := n.getOrCreateGraphClient(cfg)
		if err != nil {
			return util.WrapError("create Graph client", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		subject, body := detectionEmail(d)
		return sendWithClient(ctx, client, cfg, subject, body)
	}, ChannelEmail)
}

func (n *DetectionNotifier) publishDetection(cfg *types.MQTTConfig, d *audio.Detection) {
	util.LogNotifyResult(func() error {
		p, err := n.mqttPublisher(cfg)
		if err != nil {
			return err
		}
		return p.PublishDetection(d)
	}, ChannelMQTT)
}

// getOrCreateGraphClient returns the cached Graph client, creating it if needed.
func (n *DetectionNotifier) getOrCreateGraphClient(cfg *GraphConfig) (*GraphClient, error) {
	n.graphMu.Lock()
	defer n.graphMu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

// mqttPublisher returns the cached publisher, reconnecting when cfg differs
// from the configuration it was created with.
func (n *DetectionNotifier) mqttPublisher(cfg *types.MQTTConfig) (*MQTTPublisher, error) {
	n.mqttMu.Lock()
	defer n.mqttMu.Unlock()

	if n.mqtt != nil && n.mqttCfg == *cfg {
		return n.mqtt, nil
	}
	if n.mqtt != nil {
		n.mqtt.Close()
		n.mqtt = nil
	}

	p, err := newMQTTPublisher(cfg, n.dial)
	if err != nil {
		return nil, err
	}
	n.mqtt = p
	n.mqttCfg = *cfg
	return p, nil
}
