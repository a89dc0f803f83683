// Package notify delivers fire-and-forget notifications and broadcasts.
// Delivery failures are logged and never block or fail the operation
// that produced them.
package notify

import "tradewarden/internal/logger"

// Notification is a message addressed to an agent's operator.
type Notification struct {
	AgentID  string
	Severity string // info, warning, critical
	Title    string
	Body     string
}

// Notifier is the outbound notification contract.
type Notifier interface {
	Send(n Notification)
	Broadcast(channel, event string, payload any)
}

// logNotifier writes notifications to the structured log. It stands in
// for a real delivery channel (chat webhook, email, websocket fan-out).
type logNotifier struct{}

// NewLogNotifier creates a Notifier backed by the application log.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) Send(msg Notification) {
	logger.Get().Infow("notification",
		"agent_id", msg.AgentID,
		"severity", msg.Severity,
		"title", msg.Title,
		"body", msg.Body,
	)
}

func (n *logNotifier) Broadcast(channel, event string, payload any) {
	logger.Get().Infow("broadcast",
		"channel", channel,
		"event", event,
		"payload", payload,
	)
}
