package publisher

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTTPublisher publishes frames as retained JSON messages, one topic per
// session, so a renderer joining late gets the current frame immediately.
type MQTTPublisher struct {
	client      mqtt.Client
	topicPrefix string
	logTopics   bool
	timeout     time.Duration
	metrics     PublisherMetrics
}

func NewMQTTPublisher(broker, clientID, topicPrefix string, logTopics bool, m PublisherMetrics) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			if m != nil {
				m.SetConnected("mqtt", false)
			}
			log.Printf("mqtt connection lost: %v", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			if m != nil {
				m.SetConnected("mqtt", true)
			}
			log.Printf("mqtt connected to %s", broker)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTPublisher{client: client, topicPrefix: topicPrefix, logTopics: logTopics, timeout: 5 * time.Second, metrics: m}, nil
}

func (p *MQTTPublisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

// Topic returns <prefix>/<vehicle>/<session>.
func (p *MQTTPublisher) Topic(vehicleID, sessionID string) string {
	parts := []string{subjectToken(vehicleID), subjectToken(sessionID)}
	if prefix := strings.Trim(p.topicPrefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (p *MQTTPublisher) PublishFrame(msg FrameMessage) error {
	topic := p.Topic(msg.VehicleID, msg.SessionID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logTopics {
		log.Printf("mqtt publish topic=%s index=%d", topic, msg.Index)
	}
	start := time.Now()
	token := p.client.Publish(topic, 0, true, b)
	if !token.WaitTimeout(p.timeout) {
		err = errPublishTimeout
	} else {
		err = token.Error()
	}
	observe(p.metrics, "mqtt", start, err)
	return err
}
