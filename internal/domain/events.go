package domain

import "time"

// Source identifies who caused a cart change. The reconciler tags its own
// events so listeners can filter them out and no feedback loop forms.
type Source int

const (
	SourceUnknown Source = iota
	SourceTheme
	SourceWebhook
	SourceSuggestions
	SourceReconciler
	SourceResync
)

var sourceNames = map[Source]string{
	SourceUnknown:     "unknown",
	SourceTheme:       "theme",
	SourceWebhook:     "webhook",
	SourceSuggestions: "suggestions",
	SourceReconciler:  "reconciler",
	SourceResync:      "resync",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSource maps wire-level source strings to the typed enum. Anything
// unrecognized becomes SourceUnknown and is treated like a theme event.
func ParseSource(s string) Source {
	for src, name := range sourceNames {
		if name == s {
			return src
		}
	}
	return SourceUnknown
}

// CartEvent is a cart-changed notification. Sections carries re-rendered
// section HTML when the originating mutation requested it.
type CartEvent struct {
	ID        string            `json:"id"`
	Resource  string            `json:"resource"`
	Source    Source            `json:"-"`
	CartToken string            `json:"cart_token,omitempty"`
	Sections  map[string]string `json:"sections,omitempty"`
	At        time.Time         `json:"at"`
}
