package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roost/internal/config"
	"roost/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyShadowActivated(context.Background(), "alice", "shadow-7", time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "shadow activated",
			send: func(svc notifications.Service) error {
				return svc.NotifyShadowActivated(context.Background(), "alice", "shadow-7", 5*time.Minute+2*time.Second)
			},
			expectTitle:    "Roost - Shadow Activated",
			expectMessage:  "Shadow shadow-7 took over for alice after 5m2s of silence",
			expectTags:     "roost,shadow,failover",
			expectPriority: "high",
		},
		{
			name: "agent offline",
			send: func(svc notifications.Service) error {
				return svc.NotifyAgentOffline(context.Background(), "alice")
			},
			expectTitle:   "Roost - Agent Offline",
			expectMessage: "Agent alice went offline",
			expectTags:    "roost,agent,offline",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("backend unreachable"), "sweep")
			},
			expectTitle:    "Roost - Error",
			expectMessage:  "Error with sweep: backend unreachable",
			expectTags:     "roost,error,alert",
			expectPriority: "high",
		},
		{
			name: "test notification",
			send: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Roost - Test",
			expectMessage:  "Notification system test",
			expectTags:     "roost,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsGates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for gated event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ShadowActivation = false
	cfg.Notifications.AgentOffline = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyShadowActivated(ctx, "alice", "shadow-7", time.Minute); err != nil {
		t.Fatalf("gated shadow notification: %v", err)
	}
	if err := svc.NotifyAgentOffline(ctx, "alice"); err != nil {
		t.Fatalf("gated offline notification: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("x"), "test"); err != nil {
		t.Fatalf("gated error notification: %v", err)
	}
}
