package notify

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/types"
	"github.com/oszuidwest/hearingai/internal/util"
)

const (
	mqttConnectTimeout = 5000 * time.Millisecond
	mqttPublishTimeout = 5000 * time.Millisecond
	mqttQuiesceMs      = 250
	defaultTopicPrefix = "hearingai"
)

// ErrMQTTTimeout is returned when the broker does not acknowledge in time.
var ErrMQTTTimeout = errors.New("mqtt operation timed out")

// mqttConn is the part of a broker connection the publisher uses.
type mqttConn interface {
	Publish(topic string, payload []byte) error
	Close()
}

// dialFunc opens a broker connection.
type dialFunc func(cfg *types.MQTTConfig) (mqttConn, error)

// pahoConn adapts a paho client to mqttConn.
type pahoConn struct {
	client mqtt.Client
}

func (p *pahoConn) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return ErrMQTTTimeout
	}
	return token.Error()
}

func (p *pahoConn) Close() {
	p.client.Disconnect(mqttQuiesceMs)
}

// dialPaho connects to the configured broker with auto-reconnect enabled.
func dialPaho(cfg *types.MQTTConfig) (mqttConn, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cmp.Or(cfg.ClientID, fmt.Sprintf("hearingai-%d", time.Now().UnixNano())))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, ErrMQTTTimeout
	}
	if err := token.Error(); err != nil {
		return nil, util.WrapError("connect to MQTT broker", err)
	}
	return &pahoConn{client: client}, nil
}

// ChannelMessage is the payload published for channel activity.
type ChannelMessage struct {
	Channel   audio.Channel `json:"channel"`
	Timestamp string        `json:"ts"`
}

// MQTTPublisher publishes detections and channel activity below a topic prefix.
type MQTTPublisher struct {
	conn   mqttConn
	prefix string
}

// NewMQTTPublisher connects to the broker in cfg.
func NewMQTTPublisher(cfg *types.MQTTConfig) (*MQTTPublisher, error) {
	return newMQTTPublisher(cfg, dialPaho)
}

func newMQTTPublisher(cfg *types.MQTTConfig, dial dialFunc) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker not configured")
	}
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &MQTTPublisher{conn: conn, prefix: cmp.Or(cfg.TopicPrefix, defaultTopicPrefix)}, nil
}

// DetectionTopic returns the topic detections are published to.
func (p *MQTTPublisher) DetectionTopic() string {
	return p.prefix + "/detection"
}

// ChannelTopic returns the topic activity on ch is published to.
func (p *MQTTPublisher) ChannelTopic(ch audio.Channel) string {
	return p.prefix + "/channel/" + string(ch)
}

// PublishDetection publishes d as JSON.
func (p *MQTTPublisher) PublishDetection(d *audio.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return util.WrapError("marshal detection", err)
	}
	if err := p.conn.Publish(p.DetectionTopic(), payload); err != nil {
		return util.WrapError("publish detection", err)
	}
	return nil
}

// PublishChannel publishes channel activity on ch at time at.
func (p *MQTTPublisher) PublishChannel(ch audio.Channel, at time.Time) error {
	payload, err := json.Marshal(ChannelMessage{Channel: ch, Timestamp: at.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return util.WrapError("marshal channel message", err)
	}
	if err := p.conn.Publish(p.ChannelTopic(ch), payload); err != nil {
		return util.WrapError("publish channel activity", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.conn.Close()
}

// SendTestMQTT connects with cfg and publishes a test message.
func SendTestMQTT(cfg *types.MQTTConfig) error {
	return sendTestMQTT(cfg, dialPaho)
}

func sendTestMQTT(cfg *types.MQTTConfig, dial dialFunc) error {
	p, err := newMQTTPublisher(cfg, dial)
	if err != nil {
		return err
	}
	defer p.Close()

	payload, err := json.Marshal(WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from " + AppName,
		Timestamp: timestampUTC(time.Now()),
	})
	if err != nil {
		return util.WrapError("marshal payload", err)
	}
	if err := p.conn.Publish(p.prefix+"/test", payload); err != nil {
		return util.WrapError("publish test message", err)
	}
	return nil
}
