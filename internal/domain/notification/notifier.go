package notification

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies what changed for the user.
type Kind string

const (
	KindConnectionLinked   Kind = "connection_linked"
	KindConnectionUnlinked Kind = "connection_unlinked"
)

// Message is a push notification addressed to every device of one user.
type Message struct {
	UserID string
	Kind   Kind
	Title  string
	Body   string
	Data   map[string]string
}

// Notifier delivers user-facing push notifications. Delivery is best
// effort: callers log failures and never roll back state because of them.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NopNotifier drops every message. Used when push delivery is not configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Message) error { return nil }

func ConnectionLinked(userID, merchant string) Message {
	return Message{
		UserID: userID,
		Kind:   KindConnectionLinked,
		Title:  "Account linked",
		Body:   fmt.Sprintf("%s is now connected.", merchant),
		Data:   map[string]string{"kind": string(KindConnectionLinked), "merchant": merchant},
	}
}

func ConnectionUnlinked(userID, merchant string) Message {
	return Message{
		UserID: userID,
		Kind:   KindConnectionUnlinked,
		Title:  "Account disconnected",
		Body:   fmt.Sprintf("%s is no longer connected.", merchant),
		Data:   map[string]string{"kind": string(KindConnectionUnlinked), "merchant": merchant},
	}
}

// UserTopic maps an opaque user id onto the per-user FCM topic. Topic names
// only allow [a-zA-Z0-9-_.~%], so anything else is replaced with '_'.
func UserTopic(userID string) string {
	var b strings.Builder
	b.Grow(len(userID) + 5)
	b.WriteString("user-")
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~', r == '%':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
