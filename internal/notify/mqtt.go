package notify

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes messages to a broker topic derived from the device
// identifier.
type MQTT struct {
	client      mqtt.Client
	topicPrefix string
}

// NewMQTT connects to the broker and returns the sink.
func NewMQTT(brokerAddr, clientID, topicPrefix string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", brokerAddr, token.Error())
	}

	return &MQTT{client: client, topicPrefix: topicPrefix}, nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

type statusPayload struct {
	DeviceID  string            `json:"device_id"`
	Title     string            `json:"title"`
	Major     uint16            `json:"major"`
	Minor     uint16            `json:"minor"`
	Firmware  string            `json:"firmware"`
	UUID      string            `json:"uuid"`
	Status    string            `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp string            `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (m *MQTT) Send(ctx context.Context, msg Message) error {
	payload := statusPayload{
		DeviceID:  msg.DeviceID,
		Title:     msg.Title,
		Major:     msg.Major,
		Minor:     msg.Minor,
		Firmware:  msg.Firmware,
		UUID:      msg.UUID,
		Status:    msg.Status,
		Error:     msg.Error,
		Timestamp: Timestamp(),
		Metadata:  msg.Fields,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode status payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/status", m.topicPrefix, msg.DeviceID)
	token := m.client.Publish(topic, 0, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
