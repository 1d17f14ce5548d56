package main

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Reading is the JSON document published per channel and round.
type Reading struct {
	Device    string    `json:"device"`
	Channel   string    `json:"channel"`
	Raw       int       `json:"raw"`
	Volts     float64   `json:"volts"`
	Saturated bool      `json:"saturated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type publisher struct {
	client mqtt.Client
	topic  string
	log    *zap.Logger
}

func newPublisher(broker, clientID, topic string, log *zap.Logger) (*publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	log.Info("mqtt connected", zap.String("broker", broker), zap.String("topic", topic))
	return &publisher{client: c, topic: topic, log: log}, nil
}

// publish sends r to <topic>/<channel> with QoS 1.
func (p *publisher) publish(r Reading) {
	data, err := json.Marshal(r)
	if err != nil {
		p.log.Error("marshal reading", zap.Error(err))
		return
	}
	topic := p.topic + "/" + r.Channel
	tok := p.client.Publish(topic, 1, false, data)
	if !tok.WaitTimeout(publishTimeout) {
		p.log.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := tok.Error(); err != nil {
		p.log.Error("mqtt publish", zap.String("topic", topic), zap.Error(err))
	}
}

func (p *publisher) close() {
	p.client.Disconnect(250)
}
