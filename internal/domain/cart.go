package domain

// GiftMarkerProperty tags line items that were added automatically by the
// gift reconciler. Shopify hides properties with a leading underscore from
// the cart UI, so shoppers never see the marker.
const GiftMarkerProperty = "_auto_gift"

// Cart mirrors the Shopify AJAX cart payload (GET /cart.js).
// All prices are integer minor currency units (paise for INR stores).
type Cart struct {
	Token      string     `json:"token"`
	TotalPrice int64      `json:"total_price"`
	ItemCount  int        `json:"item_count"`
	Currency   string     `json:"currency"`
	Items      []CartItem `json:"items"`
}

// CartItem is one cart line. Shopify does not return a line number; lines
// are 1-based positions in Items.
type CartItem struct {
	VariantID      int64             `json:"id"`
	Key            string            `json:"key"`
	Quantity       int               `json:"quantity"`
	FinalLinePrice int64             `json:"final_line_price"`
	Title          string            `json:"title"`
	Properties     map[string]string `json:"properties"`
}

// Gift is one entry of the static gift table: a variant that must be in the
// cart exactly once whenever the qualifying subtotal reaches Threshold.
type Gift struct {
	Key       string `yaml:"key"`
	VariantID int64  `yaml:"variant_id"`
	Threshold int64  `yaml:"threshold"`
}

// Suggestion is an upsell product offered next to the cart, optionally
// paired with a flat discount code applied on first add.
type Suggestion struct {
	VariantID    int64  `yaml:"variant_id"`
	DiscountCode string `yaml:"discount_code"`
}

// IsGift reports whether the line belongs to the gift table, either by the
// reconciler's marker property or by variant ID. The variant check catches
// gift lines added before the marker existed or added manually.
func (i CartItem) IsGift(gifts []Gift) bool {
	if _, ok := i.Properties[GiftMarkerProperty]; ok {
		return true
	}
	for _, g := range gifts {
		if g.VariantID == i.VariantID {
			return true
		}
	}
	return false
}

// QualifyingSubtotal sums the final line prices of non-gift lines. Gift
// lines are excluded so that a free gift can never keep itself qualified.
func (c *Cart) QualifyingSubtotal(gifts []Gift) int64 {
	var total int64
	for _, item := range c.Items {
		if item.IsGift(gifts) {
			continue
		}
		total += item.FinalLinePrice
	}
	return total
}

// GiftLines returns the 1-based line positions holding the given variant.
func (c *Cart) GiftLines(variantID int64) []int {
	var lines []int
	for i, item := range c.Items {
		if item.VariantID == variantID {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Line returns the item at the 1-based position, or false when out of range.
func (c *Cart) Line(line int) (CartItem, bool) {
	if line < 1 || line > len(c.Items) {
		return CartItem{}, false
	}
	return c.Items[line-1], true
}
