package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roost/internal/config"
)

const userAgent = "Roost/0.1.0"

// Service defines the alert surface exposed to coordination components.
type Service interface {
	NotifyShadowActivated(ctx context.Context, primaryAgentID, shadowAgentID string, silence time.Duration) error
	NotifyAgentOffline(ctx context.Context, agentID string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		shadowEnabled:  cfg.Notifications.ShadowActivation,
		offlineEnabled: cfg.Notifications.AgentOffline,
		errorsEnabled:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	shadowEnabled  bool
	offlineEnabled bool
	errorsEnabled  bool
}

func (n *ntfyService) NotifyShadowActivated(ctx context.Context, primaryAgentID, shadowAgentID string, silence time.Duration) error {
	if !n.shadowEnabled {
		return nil
	}
	silence = silence.Round(time.Second)
	if silence < 0 {
		silence = 0
	}
	data := payload{
		title: "Roost - Shadow Activated",
		message: fmt.Sprintf("Shadow %s took over for %s after %s of silence",
			strings.TrimSpace(shadowAgentID), strings.TrimSpace(primaryAgentID), silence),
		tags:     []string{"roost", "shadow", "failover"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAgentOffline(ctx context.Context, agentID string) error {
	if !n.offlineEnabled {
		return nil
	}
	data := payload{
		title:   "Roost - Agent Offline",
		message: fmt.Sprintf("Agent %s went offline", strings.TrimSpace(agentID)),
		tags:    []string{"roost", "agent", "offline"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorsEnabled {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Roost - Error",
		message:  builder.String(),
		tags:     []string{"roost", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Roost - Test",
		message:  "Notification system test",
		tags:     []string{"roost", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyShadowActivated(context.Context, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyAgentOffline(context.Context, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
