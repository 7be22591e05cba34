package events

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reflexgate/reflexgate/internal/config"
	"github.com/reflexgate/reflexgate/internal/logger"
)

func testHubConfig() config.EventsConfig {
	cfg := config.GetDefaults().Events
	cfg.Enabled = true
	cfg.Password = "secret"
	return cfg
}

func TestShouldBroadcastEvent(t *testing.T) {
	t.Run("DisabledHubDropsEverything", func(t *testing.T) {
		cfg := testHubConfig()
		cfg.Enabled = false
		h := NewHub(cfg, logger.Nop())

		if h.shouldBroadcastEvent(EventTypePIIDetection) {
			t.Error("Disabled hub should not broadcast")
		}
	})

	t.Run("PerTypeToggles", func(t *testing.T) {
		cfg := testHubConfig()
		cfg.Broadcast.RateLimitDenials = false
		h := NewHub(cfg, logger.Nop())

		if !h.shouldBroadcastEvent(EventTypePIIDetection) {
			t.Error("PII detections should broadcast by default")
		}
		if h.shouldBroadcastEvent(EventTypeRateLimitDenied) {
			t.Error("Disabled event type should not broadcast")
		}
		// Connection chatter is off by default.
		if h.shouldBroadcastEvent(EventTypeConnection) {
			t.Error("Connection events should be off by default")
		}
	})
}

func TestShouldSendToClient(t *testing.T) {
	h := NewHub(testHubConfig(), logger.Nop())
	piiEvent := Event{Type: EventTypePIIDetection}
	denialEvent := Event{Type: EventTypeRateLimitDenied}

	t.Run("NoSubscriptionReceivesAll", func(t *testing.T) {
		client := &Client{}
		if !h.shouldSendToClient(client, piiEvent) || !h.shouldSendToClient(client, denialEvent) {
			t.Error("Unsubscribed client should receive every event")
		}
	})

	t.Run("SubscriptionNarrowsTypes", func(t *testing.T) {
		client := &Client{Subscription: &SubscriptionRequest{
			Events: []EventType{EventTypeRateLimitDenied},
		}}
		if h.shouldSendToClient(client, piiEvent) {
			t.Error("Client did not subscribe to PII events")
		}
		if !h.shouldSendToClient(client, denialEvent) {
			t.Error("Client subscribed to denial events")
		}
	})
}

func TestApplyEventFilter(t *testing.T) {
	mediumInjection := Event{
		Type: EventTypeInjectionDetection,
		Data: InjectionDetectionEvent{EndpointTag: "process", TopSeverity: "medium"},
	}
	highInjection := Event{
		Type: EventTypeInjectionDetection,
		Data: InjectionDetectionEvent{EndpointTag: "process", TopSeverity: "high"},
	}
	sourceDenial := Event{
		Type: EventTypeRateLimitDenied,
		Data: RateLimitDeniedEvent{Dimension: "source"},
	}

	t.Run("MinSeverity", func(t *testing.T) {
		filter := &EventFilter{MinSeverity: "high"}
		if applyEventFilter(filter, mediumInjection) {
			t.Error("Medium severity should be dropped by a high floor")
		}
		if !applyEventFilter(filter, highInjection) {
			t.Error("High severity should pass a high floor")
		}
	})

	t.Run("Dimensions", func(t *testing.T) {
		filter := &EventFilter{Dimensions: []string{"caller", "global"}}
		if applyEventFilter(filter, sourceDenial) {
			t.Error("Source denial should be dropped")
		}
		filter.Dimensions = []string{"source"}
		if !applyEventFilter(filter, sourceDenial) {
			t.Error("Source denial should pass")
		}
	})

	t.Run("EndpointTags", func(t *testing.T) {
		filter := &EventFilter{EndpointTags: []string{"chat"}}
		if applyEventFilter(filter, highInjection) {
			t.Error("Event for another endpoint should be dropped")
		}
		filter.EndpointTags = []string{"process"}
		if !applyEventFilter(filter, highInjection) {
			t.Error("Event for a listed endpoint should pass")
		}
	})
}

func TestParseCredentials(t *testing.T) {
	user, pass, ok := parseCredentials(base64.StdEncoding.EncodeToString([]byte("user:pass")))
	if !ok || user != "user" || pass != "pass" {
		t.Errorf("parseCredentials = %q, %q, %v", user, pass, ok)
	}
	if _, _, ok := parseCredentials("not base64!!"); ok {
		t.Error("Malformed base64 should be rejected")
	}
	if _, _, ok := parseCredentials(base64.StdEncoding.EncodeToString([]byte("nocolon"))); ok {
		t.Error("Credentials without a separator should be rejected")
	}
}

func TestHandleWebSocketAuth(t *testing.T) {
	h := NewHub(testHubConfig(), logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	t.Run("MissingAuth", func(t *testing.T) {
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		req.SetBasicAuth("reflexgate", "wrong")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestHubBroadcastDelivery(t *testing.T) {
	h := NewHub(testHubConfig(), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("reflexgate:secret")))

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.GetStats().ActiveConnections == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if h.GetStats().ActiveConnections != 1 {
		t.Fatal("Client never registered")
	}

	h.BroadcastEvent(Event{
		Type:      EventTypePIIDetection,
		Timestamp: time.Now(),
		RequestID: "r-1",
		Data: PIIDetectionEvent{
			RequestID: "r-1",
			Patterns:  []string{"ssn"},
			Count:     1,
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Type != EventTypePIIDetection || got.RequestID != "r-1" {
		t.Errorf("Received event = %+v", got)
	}
	data, ok := got.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Event data = %T", got.Data)
	}
	if patternList, ok := data["patterns"].([]interface{}); !ok || len(patternList) != 1 || patternList[0] != "ssn" {
		t.Errorf("Event patterns = %v", data["patterns"])
	}
}
