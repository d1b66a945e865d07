package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// MessageText is the user-facing copy for one notification kind. Title and
// Body may reference {merchant}.
type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Templates overrides the built-in English copy, keyed by Kind.
type Templates map[Kind]MessageText

// LoadTemplates reads a JSON file of the form
// {"connection_linked": {"title": "...", "body": "..."}}.
func LoadTemplates(path string) (Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	var t Templates
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	for kind := range t {
		if kind != KindConnectionLinked && kind != KindConnectionUnlinked {
			return nil, fmt.Errorf("messages file: unknown notification kind %q", kind)
		}
	}
	return t, nil
}

// Templated rewrites message copy from t before handing it to next. Kinds
// without a template keep their default text.
func Templated(next Notifier, t Templates) Notifier {
	return templated{next: next, templates: t}
}

type templated struct {
	next      Notifier
	templates Templates
}

func (n templated) Notify(ctx context.Context, msg Message) error {
	if text, ok := n.templates[msg.Kind]; ok {
		r := strings.NewReplacer("{merchant}", msg.Data["merchant"])
		if text.Title != "" {
			msg.Title = r.Replace(text.Title)
		}
		if text.Body != "" {
			msg.Body = r.Replace(text.Body)
		}
	}
	return n.next.Notify(ctx, msg)
}
