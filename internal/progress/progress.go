// Package progress computes the milestone progress bar shown next to the
// cart: a clamped 0-100 percentage where each configured threshold owns an
// equal band, plus a reached flag per milestone.
package progress

import (
	"sort"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
)

type Milestone struct {
	Key       string `json:"key"`
	Threshold int64  `json:"threshold"`
	Reached   bool   `json:"reached"`
}

// Compute is a pure function of the qualifying subtotal and the gift table.
// Milestones are ordered by ascending threshold; within the current band
// progress grows linearly. The result is monotone in the subtotal and
// clamped to [0,100].
func Compute(qualifying int64, gifts []domain.Gift) (int, []Milestone) {
	if len(gifts) == 0 {
		return 0, nil
	}
	if qualifying < 0 {
		qualifying = 0
	}

	milestones := make([]Milestone, len(gifts))
	for i, g := range gifts {
		milestones[i] = Milestone{Key: g.Key, Threshold: g.Threshold}
	}
	sort.Slice(milestones, func(i, j int) bool {
		return milestones[i].Threshold < milestones[j].Threshold
	})

	share := 100.0 / float64(len(milestones))
	percent := 0.0
	prev := int64(0)
	for i := range milestones {
		m := &milestones[i]
		if qualifying >= m.Threshold {
			m.Reached = true
			percent += share
			prev = m.Threshold
			continue
		}
		if qualifying > prev {
			percent += share * float64(qualifying-prev) / float64(m.Threshold-prev)
		}
		break
	}

	// Accumulated float shares can land just below 100 when every milestone
	// is reached (100/n does not sum back to 100 for every n). The highest
	// milestone being reached means the bar is full, period.
	if milestones[len(milestones)-1].Reached {
		return 100, milestones
	}

	p := int(percent)
	if p > 100 {
		p = 100
	}
	return p, milestones
}
