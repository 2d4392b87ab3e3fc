package seo

import (
	"github.com/JakeFAU/carsearch/internal/slugs"
	"github.com/JakeFAU/carsearch/internal/textfold"
)

// UpgradeResult reports whether free text can be replaced by slugs.
type UpgradeResult struct {
	CanUpgrade bool      `json:"can_upgrade"`
	Detected   slugs.Set `json:"detected"`
	// Reason explains a refusal for logs and the explain command.
	Reason string `json:"reason,omitempty"`
}

// Upgrader turns free text into structured filters when the text names
// exactly one coherent slug combination.
type Upgrader struct {
	table SlugTable
}

// NewUpgrader builds an Upgrader.
func NewUpgrader(table SlugTable) *Upgrader {
	return &Upgrader{table: table}
}

// Upgrade resolves every token of freeText through the registry. Any token
// that is unknown or ambiguous, any internal conflict, and any conflict with
// a different value already in existing refuses the upgrade.
func (u *Upgrader) Upgrade(freeText string, existing slugs.Set) UpgradeResult {
	whole := textfold.Fold(freeText)
	if whole == "" {
		return refuse("empty text")
	}

	// The whole phrase may be a curated keyword containing spaces.
	if sets := u.table.Lookup(whole); len(sets) == 1 {
		return u.accept(sets[0], existing)
	}

	detected := slugs.Set{}
	for _, tok := range textfold.Fields(whole) {
		sets := u.table.Lookup(tok)
		switch len(sets) {
		case 0:
			return refuse("unresolved term " + tok)
		case 1:
		default:
			return refuse("ambiguous term " + tok)
		}
		merged, ok := merge(detected, sets[0])
		if !ok {
			return refuse("conflicting terms")
		}
		detected = merged
	}
	return u.accept(detected, existing)
}

func (u *Upgrader) accept(detected, existing slugs.Set) UpgradeResult {
	if detected.IsZero() {
		return refuse("nothing detected")
	}
	combined, ok := merge(existing, detected)
	if !ok {
		return refuse("conflicts with selected filters")
	}
	if (detected.Pref != "" || detected.City != "") && combined.City != "" &&
		u.table.Parent(slugs.KindCity, combined.City) != combined.Pref {
		return refuse("city outside selected pref")
	}
	if (detected.Maker != "" || detected.Model != "") && combined.Model != "" &&
		u.table.Parent(slugs.KindModel, combined.Model) != combined.Maker {
		return refuse("model outside selected maker")
	}
	return UpgradeResult{CanUpgrade: true, Detected: detected}
}

func refuse(reason string) UpgradeResult {
	return UpgradeResult{Reason: reason}
}

// merge combines two partial sets, failing when a dimension holds two
// different values.
func merge(a, b slugs.Set) (slugs.Set, bool) {
	for _, kind := range slugs.Kinds {
		av, bv := a.Get(kind), b.Get(kind)
		switch {
		case bv == "":
		case av == "":
			a = a.With(kind, bv)
		case av != bv:
			return slugs.Set{}, false
		}
	}
	return a, true
}
