package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/domain/booking"
)

const mqttTimeout = 10 * time.Second

// publisher is the part of pahomqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTSink publishes each result as JSON to {prefix}/runs/{status}, QoS 1,
// and retains the latest one on {prefix}/runs/last.
type MQTTSink struct {
	client publisher
	prefix string
}

func NewMQTTSink(client publisher, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: strings.TrimRight(prefix, "/")}
}

// DialMQTT connects to the broker described by cfg.
func DialMQTT(cfg config.MQTTConfig) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttTimeout)

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("%w: mqtt connect timeout after %v", ErrPublishFailed, mqttTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: mqtt connect: %w", ErrPublishFailed, err)
	}
	return c, nil
}

func (s *MQTTSink) Publish(ctx context.Context, res booking.Result) error {
	payload, err := json.Marshal(newPayload(res))
	if err != nil {
		return err
	}
	if err := s.send(ctx, s.prefix+"/runs/"+string(res.Status()), false, payload); err != nil {
		return err
	}
	return s.send(ctx, s.prefix+"/runs/last", true, payload)
}

func (s *MQTTSink) send(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := s.client.Publish(topic, 1, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
