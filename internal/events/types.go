package events

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of hub event
type EventType string

const (
	// EventTypePIIDetection announces sensitive-data matches in a request
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeInjectionDetection announces injection matches in a request
	EventTypeInjectionDetection EventType = "injection_detection"
	// EventTypeRateLimitDenied announces a rate limit denial
	EventTypeRateLimitDenied EventType = "ratelimit_denied"
	// EventTypeSystemStatus announces gateway lifecycle and health
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection announces hub client connects and disconnects
	EventTypeConnection EventType = "connection"
)

// Event is the envelope sent to subscribed clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PIIDetectionEvent carries pattern IDs only; no request text, verbatim or
// redacted, ever reaches the hub.
type PIIDetectionEvent struct {
	RequestID     string   `json:"request_id"`
	EndpointTag   string   `json:"endpoint_tag"`
	CallerID      string   `json:"caller_id,omitempty"`
	SourceAddress string   `json:"source_address,omitempty"`
	Patterns      []string `json:"patterns"`
	Count         int      `json:"count"`
	CacheHit      bool     `json:"cache_hit"`
	ProcessingMS  float64  `json:"processing_ms"`
}

// InjectionDetectionEvent summarizes injection matches in a request
type InjectionDetectionEvent struct {
	RequestID     string   `json:"request_id"`
	EndpointTag   string   `json:"endpoint_tag"`
	CallerID      string   `json:"caller_id,omitempty"`
	SourceAddress string   `json:"source_address,omitempty"`
	Patterns      []string `json:"patterns"`
	TopSeverity   string   `json:"top_severity"`
	TopConfidence float64  `json:"top_confidence"`
	Blocked       bool     `json:"blocked"`
	Count         int      `json:"count"`
	CacheHit      bool     `json:"cache_hit"`
	ProcessingMS  float64  `json:"processing_ms"`
}

// RateLimitDeniedEvent reports a denied request and the axis that denied it
type RateLimitDeniedEvent struct {
	RequestID     string `json:"request_id"`
	EndpointTag   string `json:"endpoint_tag"`
	CallerID      string `json:"caller_id,omitempty"`
	SourceAddress string `json:"source_address,omitempty"`
	Dimension     string `json:"dimension"`
	RetryAfterMS  int64  `json:"retry_after_ms"`
	Degraded      bool   `json:"degraded"`
}

// SystemStatusEvent reports gateway status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime,omitempty"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDetections  int64  `json:"total_detections"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent reports hub client connects and disconnects
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to the hub
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest narrows which events a client receives. A client
// with no subscription receives everything the hub broadcasts.
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter represents filtering options for subscribed events
type EventFilter struct {
	// MinSeverity drops injection events below this severity.
	MinSeverity string `json:"min_severity,omitempty"`
	// Dimensions keeps only rate limit denials on the listed axes.
	Dimensions []string `json:"dimensions,omitempty"`
	// EndpointTags keeps only detection events for the listed endpoints.
	EndpointTags []string `json:"endpoint_tags,omitempty"`
}

// Client represents one hub connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
