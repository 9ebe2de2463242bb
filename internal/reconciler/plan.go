package reconciler

import (
	"sort"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
)

type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionRemove
	ActionRequantity
)

func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionRequantity:
		return "requantity"
	}
	return "unknown"
}

// Action is one corrective cart mutation. Adds carry the gift; removals and
// requantifies carry the 1-based line they target.
type Action struct {
	Kind     ActionKind
	Gift     domain.Gift
	Line     int
	Quantity int
}

// Plan compares the desired gift state against the actual cart and returns
// the qualifying subtotal plus the mutations that converge the cart in a
// single pass.
//
// Gifts are evaluated highest threshold first. Line-targeting actions are
// ordered by descending line so that removing one line never invalidates
// the line number of the next, and adds come last because they need no
// line number. Duplicate gift lines collapse to the first occurrence.
func Plan(cart *domain.Cart, gifts []domain.Gift) (int64, []Action) {
	subtotal := cart.QualifyingSubtotal(gifts)

	ordered := make([]domain.Gift, len(gifts))
	copy(ordered, gifts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Threshold > ordered[j].Threshold
	})

	var lineActions, adds []Action
	for _, gift := range ordered {
		lines := cart.GiftLines(gift.VariantID)
		// An empty paid cart disqualifies every gift even when a stale
		// total would still satisfy the threshold.
		desired := subtotal > 0 && subtotal >= gift.Threshold

		if !desired {
			for _, line := range lines {
				lineActions = append(lineActions, Action{Kind: ActionRemove, Gift: gift, Line: line})
			}
			continue
		}

		if len(lines) == 0 {
			adds = append(adds, Action{Kind: ActionAdd, Gift: gift, Quantity: 1})
			continue
		}

		// Keep the first line at quantity 1, drop the rest.
		if item, ok := cart.Line(lines[0]); ok && item.Quantity != 1 {
			lineActions = append(lineActions, Action{Kind: ActionRequantity, Gift: gift, Line: lines[0], Quantity: 1})
		}
		for _, line := range lines[1:] {
			lineActions = append(lineActions, Action{Kind: ActionRemove, Gift: gift, Line: line})
		}
	}

	sort.Slice(lineActions, func(i, j int) bool {
		return lineActions[i].Line > lineActions[j].Line
	})

	return subtotal, append(lineActions, adds...)
}
