package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const webhookTimeout = 10 * time.Second

// Embed colors understood by common webhook consumers.
const (
	colorInfo  = 5763719  // green
	colorError = 15158332 // red
)

// Webhook posts messages as JSON embeds to a configured HTTPS endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook builds a sink for the given endpoint.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: webhookTimeout}}
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookEmbed struct {
	Title  string         `json:"title"`
	Color  int            `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookPayload struct {
	Content string         `json:"content"`
	Embeds  []webhookEmbed `json:"embeds"`
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	fields := []webhookField{
		{Name: "Device", Value: msg.DeviceID, Inline: true},
		{Name: "Major", Value: strconv.Itoa(int(msg.Major)), Inline: true},
		{Name: "Minor", Value: strconv.Itoa(int(msg.Minor)), Inline: true},
		{Name: "Firmware", Value: msg.Firmware, Inline: true},
		{Name: "UUID", Value: msg.UUID, Inline: false},
	}
	if msg.Status != "" {
		fields = append(fields, webhookField{Name: "Status", Value: msg.Status, Inline: false})
	}
	if msg.Error != "" {
		fields = append(fields, webhookField{Name: "Error", Value: msg.Error, Inline: false})
	}
	for name, value := range msg.Fields {
		fields = append(fields, webhookField{Name: name, Value: value, Inline: true})
	}

	color := colorInfo
	if msg.Severity == SeverityError {
		color = colorError
	}

	payload := webhookPayload{
		Content: msg.Title,
		Embeds:  []webhookEmbed{{Title: msg.Title, Color: color, Fields: fields}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
