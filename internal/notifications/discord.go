// Package notifications posts operator notifications to a Discord webhook.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Discord is a simple Discord webhook notifier.
type Discord struct {
	webhookURL string
	logger     *zap.Logger
	client     *http.Client
	pending    sync.WaitGroup
}

// NewDiscord creates a new Discord notifier. If webhookURL is empty,
// notifications are silently skipped.
func NewDiscord(webhookURL string, logger *zap.Logger) *Discord {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled returns true if the webhook is configured.
func (d *Discord) Enabled() bool {
	return d != nil && d.webhookURL != ""
}

// discordMessage is the payload for Discord webhook.
type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// send posts a message to the webhook in the background. Errors are logged
// but don't affect the caller; the post outlives the caller's request.
func (d *Discord) send(msg discordMessage) {
	if !d.Enabled() {
		return
	}

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()

		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Error("discord: failed to marshal message", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Error("discord: failed to create request", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Warn("discord: failed to send webhook", zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			d.logger.Warn("discord: webhook returned error status", zap.Int("status", resp.StatusCode))
		}
	}()
}

// Wait blocks until in-flight webhook posts finish.
func (d *Discord) Wait() {
	if d != nil {
		d.pending.Wait()
	}
}

// ApplicationInterest describes a user who asked for a scheme's application link.
type ApplicationInterest struct {
	SessionID string
	Scheme    string
	Link      string
	Age       *int
	Income    *int
}

// NotifyApplicationInterest reports that a user confirmed they want to apply.
func (d *Discord) NotifyApplicationInterest(ai ApplicationInterest) {
	link := ai.Link
	if link == "" {
		link = "CSC"
	}
	d.send(discordMessage{
		Embeds: []discordEmbed{{
			Title:       "आवेदन में रुचि",
			Description: fmt.Sprintf("उपयोगकर्ता ने **%s** के लिए आवेदन करना चुना", ai.Scheme),
			Color:       0x00FF00, // Green
			Fields: []embedField{
				{Name: "Session", Value: fmt.Sprintf("`%s`", ai.SessionID), Inline: true},
				{Name: "Age", Value: intOrDash(ai.Age), Inline: true},
				{Name: "Income", Value: intOrDash(ai.Income), Inline: true},
				{Name: "Link", Value: link},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

// NotifyCatalogUnavailable reports that the scheme catalog could not be
// loaded and the assistant is running with an empty catalog.
func (d *Discord) NotifyCatalogUnavailable(path string, err error) {
	d.send(discordMessage{
		Content: "@here", // Ping everyone
		Embeds: []discordEmbed{{
			Title:       "Scheme catalog unavailable",
			Description: "No scheme will match until the catalog is fixed.",
			Color:       0xFF0000, // Red
			Fields: []embedField{
				{Name: "Path", Value: fmt.Sprintf("`%s`", path)},
				{Name: "Error", Value: err.Error()},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
