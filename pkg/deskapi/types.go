package deskapi

import (
	"encoding/json"
	"time"
)

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Session  string `json:"session"`
	Realtime string `json:"realtime"`
}

// LoginRequest is the body of POST /v1/session/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the signed-in user.
type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role,omitempty"`
	CompanyID   string `json:"companyId,omitempty"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	LoggedIn        bool       `json:"loggedIn"`
	User            *UserView  `json:"user,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	Role            string     `json:"role,omitempty"`
	AccessExpiresAt *time.Time `json:"accessExpiresAt,omitempty"`
	AccessExpired   bool       `json:"accessExpired"`
	ExpiringSoon    bool       `json:"expiringSoon"`
}

// SubscriptionView is one registered realtime subscription.
type SubscriptionView struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Active      bool   `json:"active"`
}

// RealtimeResponse describes the realtime connection.
type RealtimeResponse struct {
	State         string             `json:"state"`
	Identity      string             `json:"identity,omitempty"`
	Subscriptions []SubscriptionView `json:"subscriptions"`
}

// SubscribeRequest is the body of POST /v1/realtime/subscriptions.
type SubscribeRequest struct {
	Destination string `json:"destination"`
}

// SendRequest is the body of POST /v1/realtime/send.
type SendRequest struct {
	Destination string            `json:"destination"`
	Payload     json.RawMessage   `json:"payload"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// NotificationView is one inbox entry.
type NotificationView struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Destination string          `json:"destination,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	Read        bool            `json:"read"`
}

// NotificationsResponse is returned by GET /v1/notifications.
type NotificationsResponse struct {
	Unread int                `json:"unread"`
	Items  []NotificationView `json:"items"`
}

// MarkReadResponse is returned by POST /v1/notifications/read.
type MarkReadResponse struct {
	Marked int `json:"marked"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
