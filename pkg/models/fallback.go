package models

// FallbackTier names one physical representation of order data probed
// after a primary query comes back empty.
type FallbackTier string

const (
	TierLegacyPosts   FallbackTier = "legacy_posts"
	TierOrderTable    FallbackTier = "order_table"
	TierLineItems     FallbackTier = "line_items"
	TierOtherOrders   FallbackTier = "other_order_tables"
	TierUnfilteredAll FallbackTier = "unfiltered_count"
)

// FallbackAttempt records one probe.
type FallbackAttempt struct {
	Tier  FallbackTier `json:"tier"`
	Table string       `json:"table,omitempty"`
	SQL   string       `json:"sql,omitempty"`
	Count int64        `json:"count"`
	Rows  []*Row       `json:"rows,omitempty"`
	// SkipReason is set when the tier could not run (table absent, probe failed).
	SkipReason string `json:"skip_reason,omitempty"`
}

// FallbackResult is the outcome of an exhaustive re-probe.
type FallbackResult struct {
	Found bool `json:"found"`
	// Winner is the first attempt that found data.
	Winner *FallbackAttempt `json:"winner,omitempty"`
	// ConfirmedZero is set when every tier ran and found nothing under the
	// original filter, including the unfiltered count.
	ConfirmedZero bool `json:"confirmed_zero"`
	// FilterTooStrict is set when only the unfiltered count found orders.
	FilterTooStrict    bool              `json:"filter_too_strict"`
	TotalWithoutFilter int64             `json:"total_without_filter,omitempty"`
	Attempts           []FallbackAttempt `json:"attempts"`
}

// TiersAttempted lists the tiers that actually ran, in order.
func (r *FallbackResult) TiersAttempted() []FallbackTier {
	var tiers []FallbackTier
	seen := make(map[FallbackTier]bool)
	for _, a := range r.Attempts {
		if a.SkipReason == "" && !seen[a.Tier] {
			seen[a.Tier] = true
			tiers = append(tiers, a.Tier)
		}
	}
	return tiers
}
