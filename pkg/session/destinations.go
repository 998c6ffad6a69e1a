package session

import "strings"

// Destinations names the broker destinations the session uses. Templates
// may contain {identity} and {ticketId}.
type Destinations struct {
	Global            string `toml:"global"`
	UserNotifications string `toml:"user_notifications"`
	UserTickets       string `toml:"user_tickets"`
	ChatSend          string `toml:"chat_send"`
	ChatTyping        string `toml:"chat_typing"`
}

func DefaultDestinations() Destinations {
	return Destinations{
		Global:            "/topic/global",
		UserNotifications: "/topic/user/{identity}/notifications",
		UserTickets:       "/topic/user/{identity}/tickets",
		ChatSend:          "/app/chat/{ticketId}/send",
		ChatTyping:        "/app/chat/{ticketId}/typing",
	}
}

// withDefaults fills empty templates from DefaultDestinations.
func (d Destinations) withDefaults() Destinations {
	def := DefaultDestinations()
	if d.Global == "" {
		d.Global = def.Global
	}
	if d.UserNotifications == "" {
		d.UserNotifications = def.UserNotifications
	}
	if d.UserTickets == "" {
		d.UserTickets = def.UserTickets
	}
	if d.ChatSend == "" {
		d.ChatSend = def.ChatSend
	}
	if d.ChatTyping == "" {
		d.ChatTyping = def.ChatTyping
	}
	return d
}

// Baseline returns the topics subscribed on every connect, global first.
func (d Destinations) Baseline(identity string) []string {
	r := strings.NewReplacer("{identity}", identity)
	return []string{
		d.Global,
		r.Replace(d.UserNotifications),
		r.Replace(d.UserTickets),
	}
}

func (d Destinations) ChatSendTo(ticketID string) string {
	return strings.ReplaceAll(d.ChatSend, "{ticketId}", ticketID)
}

func (d Destinations) ChatTypingTo(ticketID string) string {
	return strings.ReplaceAll(d.ChatTyping, "{ticketId}", ticketID)
}
