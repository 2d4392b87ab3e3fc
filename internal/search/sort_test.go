package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
)

func TestSortByPriceIsStable(t *testing.T) {
	t.Parallel()

	cars := []inventory.Car{
		{ID: "a", PriceYen: 300},
		{ID: "b", PriceYen: 100},
		{ID: "c", PriceYen: 300},
		{ID: "d", PriceYen: 200},
	}
	require.Equal(t, []string{"b", "d", "a", "c"}, ids(Sort(cars, query.SortPriceAsc, testNow)))
	require.Equal(t, []string{"a", "c", "d", "b"}, ids(Sort(cars, query.SortPriceDesc, testNow)))
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(cars), "input untouched")
}

func TestSortUpdatedDescIsDefault(t *testing.T) {
	t.Parallel()

	cars := []inventory.Car{
		{ID: "old", UpdatedAt: ago(10 * time.Hour)},
		{ID: "new", UpdatedAt: ago(time.Hour)},
		{ID: "mid", UpdatedAt: ago(5 * time.Hour)},
	}
	want := []string{"new", "mid", "old"}
	require.Equal(t, want, ids(Sort(cars, query.SortUpdatedDesc, testNow)))
	require.Equal(t, want, ids(Sort(cars, "", testNow)))
}

func TestLiveScoreTiers(t *testing.T) {
	t.Parallel()

	justChanged := inventory.Car{
		ID:             "changed",
		UpdatedAt:      ago(80 * 24 * time.Hour),
		PostedAt:       ago(90 * 24 * time.Hour),
		PriceChangedAt: timePtr(ago(23 * time.Hour)),
	}
	fresh := inventory.Car{ID: "fresh", UpdatedAt: testNow, PostedAt: ago(time.Hour)}
	require.Equal(t, int64(livePriceChangedBonus), LiveScore(justChanged, testNow))
	require.Equal(t, int64(liveNewPostingBonus+liveRecencyBudget), LiveScore(fresh, testNow))

	stale := inventory.Car{ID: "stale", UpdatedAt: ago(10 * time.Minute), PostedAt: ago(72 * time.Hour)}
	require.Equal(t, int64(liveRecencyBudget-10), LiveScore(stale, testNow))

	oldChange := inventory.Car{ID: "old", UpdatedAt: ago(time.Minute), PriceChangedAt: timePtr(ago(25 * time.Hour))}
	require.Equal(t, int64(liveRecencyBudget-1), LiveScore(oldChange, testNow))
}

func TestSortLivePutsRecentPriceChangesFirst(t *testing.T) {
	t.Parallel()

	cars := []inventory.Car{
		{ID: "fresh-post", UpdatedAt: testNow, PostedAt: testNow},
		{ID: "recent-update", UpdatedAt: ago(time.Minute), PostedAt: ago(10 * 24 * time.Hour)},
		{ID: "changed-stale", UpdatedAt: ago(40 * 24 * time.Hour), PostedAt: ago(50 * 24 * time.Hour), PriceChangedAt: timePtr(ago(20 * time.Hour))},
		{ID: "changed-fresh", UpdatedAt: ago(time.Hour), PostedAt: ago(time.Hour), PriceChangedAt: timePtr(ago(time.Hour))},
	}
	got := ids(Sort(cars, query.SortLive, testNow))
	require.Equal(t, []string{"changed-fresh", "changed-stale", "fresh-post", "recent-update"}, got)
}
