package search

import (
	"cmp"
	"slices"
	"time"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
)

// Live score weights. The tiers are wide enough that a higher tier always
// outranks any combination of lower ones.
const (
	livePriceChangedBonus = 1_000_000
	liveNewPostingBonus   = 200_000
	liveRecencyBudget     = 100_000

	livePriceChangedWindow = 24 * time.Hour
	liveNewPostingWindow   = 48 * time.Hour
)

// Sort returns a sorted copy of items. The input is not modified and ties
// keep their original relative order.
func Sort(items []inventory.Car, strategy query.Sort, now time.Time) []inventory.Car {
	out := slices.Clone(items)
	switch strategy {
	case query.SortPriceAsc:
		slices.SortStableFunc(out, func(a, b inventory.Car) int {
			return cmp.Compare(a.PriceYen, b.PriceYen)
		})
	case query.SortPriceDesc:
		slices.SortStableFunc(out, func(a, b inventory.Car) int {
			return cmp.Compare(b.PriceYen, a.PriceYen)
		})
	case query.SortLive:
		type scored struct {
			car   inventory.Car
			score int64
		}
		ranked := make([]scored, len(out))
		for i, car := range out {
			ranked[i] = scored{car: car, score: LiveScore(car, now)}
		}
		slices.SortStableFunc(ranked, func(a, b scored) int {
			return cmp.Compare(b.score, a.score)
		})
		for i := range ranked {
			out[i] = ranked[i].car
		}
	default:
		slices.SortStableFunc(out, func(a, b inventory.Car) int {
			return b.UpdatedAt.Compare(a.UpdatedAt)
		})
	}
	return out
}

// LiveScore ranks a listing by how much is happening to it: a price change
// in the last day, a posting in the last two days, then a term decaying by
// one point per minute since the last update.
func LiveScore(car inventory.Car, now time.Time) int64 {
	var score int64
	if car.PriceChangedAt != nil && now.Sub(*car.PriceChangedAt) <= livePriceChangedWindow {
		score += livePriceChangedBonus
	}
	if !car.PostedAt.IsZero() && now.Sub(car.PostedAt) <= liveNewPostingWindow {
		score += liveNewPostingBonus
	}
	minutes := max(int64(now.Sub(car.UpdatedAt)/time.Minute), 0)
	score += max(liveRecencyBudget-minutes, 0)
	return score
}
