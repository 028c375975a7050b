package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

const (
	legacyOrderPostType = "shop_order"
	ordersTableSuffix   = "wc_orders"
	orderStatsSuffix    = "wc_order_stats"
)

// excludedOrderStatuses never count as orders.
var excludedOrderStatuses = []string{"trash", "auto-draft", "wc-checkout-draft"}

// orderSummaryColumns are the columns listing probes may return from an
// order table. Address and contact columns are never selected.
var orderSummaryColumns = []string{
	"id", "order_id", "status", "currency", "total_amount", "total_sales",
	"net_total", "tax_amount", "num_items_sold", "customer_id", "parent_id",
}

// auxiliaryOrderFragments mark order tables that hold details of an order
// rather than one row per order.
var auxiliaryOrderFragments = []string{"meta", "address", "note", "coupon", "tax", "operational"}

// lineItemSuffixes are probed in order by the line-item tier.
var lineItemSuffixes = []string{"wc_order_product_lookup", "woocommerce_order_items"}

// probeLegacyPosts counts or lists orders stored as content items.
func (r *FallbackResearcher) probeLegacyPosts(ctx context.Context, in *probeInput) []models.FallbackAttempt {
	const tier = models.TierLegacyPosts
	table, ok := in.table("posts")
	if !ok {
		return []models.FallbackAttempt{skipped(tier, in.tenant.Table("posts"), "table not in scope")}
	}
	in.probed[strings.ToLower(table)] = true

	dateCol := in.quote("post_date")
	base := func(b sq.SelectBuilder) sq.SelectBuilder {
		b = b.From(in.quote(table)).
			Where(sq.Eq{in.quote("post_type"): legacyOrderPostType}).
			Where(sq.NotEq{in.quote("post_status"): excludedOrderStatuses})
		return in.filter.apply(b, dateCol)
	}

	if in.countShaped {
		b := base(sq.Select(fmt.Sprintf("COUNT(*) AS %s", in.countAlias)))
		return []models.FallbackAttempt{r.countAttempt(ctx, in, tier, table, b)}
	}

	b := base(sq.Select(
		in.quote("ID")+" AS order_id",
		dateCol+" AS order_date",
		in.quote("post_status")+" AS status",
	)).OrderBy(dateCol + " DESC").Limit(uint64(in.limit))
	attempt := r.listAttempt(ctx, in, tier, table, b)
	if attempt.Count > 0 {
		r.enrichOrders(ctx, in, table, attempt.Rows)
	}
	return []models.FallbackAttempt{attempt}
}

// probeOrderTables tries the dedicated order table, then the order stats table.
func (r *FallbackResearcher) probeOrderTables(ctx context.Context, in *probeInput) []models.FallbackAttempt {
	const tier = models.TierOrderTable
	var attempts []models.FallbackAttempt
	for _, suffix := range []string{ordersTableSuffix, orderStatsSuffix} {
		table, ok := in.table(suffix)
		if !ok {
			attempts = append(attempts, skipped(tier, in.tenant.Table(suffix), "table not in scope"))
			continue
		}
		attempt := r.probeOrderTable(ctx, in, tier, table)
		attempts = append(attempts, attempt)
		if attempt.SkipReason == "" && attempt.Count > 0 {
			break
		}
	}
	return attempts
}

// probeLineItems counts distinct orders referenced by line items.
func (r *FallbackResearcher) probeLineItems(ctx context.Context, in *probeInput) []models.FallbackAttempt {
	const tier = models.TierLineItems
	var attempts []models.FallbackAttempt
	for _, suffix := range lineItemSuffixes {
		table, ok := in.table(suffix)
		if !ok {
			attempts = append(attempts, skipped(tier, in.tenant.Table(suffix), "table not in scope"))
			continue
		}
		in.probed[strings.ToLower(table)] = true

		columns, err := in.ds.GetColumns(ctx, table)
		if err != nil {
			attempts = append(attempts, skipped(tier, table, "columns unavailable: "+err.Error()))
			continue
		}
		names := columnNames(columns)
		if !hasColumnFold(names, "order_id") {
			attempts = append(attempts, skipped(tier, table, "no order_id column"))
			continue
		}
		dateCol := pickDateColumn(names)
		if in.filter != nil && dateCol == "" {
			attempts = append(attempts, skipped(tier, table, "no date column for the filter"))
			continue
		}

		orderID := in.quote("order_id")
		var b sq.SelectBuilder
		if in.countShaped {
			b = sq.Select(fmt.Sprintf("COUNT(DISTINCT %s) AS %s", orderID, in.countAlias)).From(in.quote(table))
		} else {
			b = sq.Select(orderID, "COUNT(*) AS item_count").From(in.quote(table))
		}
		if dateCol != "" {
			b = in.filter.apply(b, in.quote(dateCol))
		}

		var attempt models.FallbackAttempt
		if in.countShaped {
			attempt = r.countAttempt(ctx, in, tier, table, b)
		} else {
			attempt = r.listAttempt(ctx, in, tier, table,
				b.GroupBy(orderID).OrderBy(orderID+" DESC").Limit(uint64(in.limit)))
		}
		attempts = append(attempts, attempt)
		if attempt.SkipReason == "" && attempt.Count > 0 {
			break
		}
	}
	return attempts
}

// probeOtherOrderTables tries any remaining in-scope table whose name
// mentions orders. Tables holding order details are skipped.
func (r *FallbackResearcher) probeOtherOrderTables(ctx context.Context, in *probeInput) []models.FallbackAttempt {
	const tier = models.TierOtherOrders
	var candidates []string
	for lower, name := range in.inScope {
		suffix := strings.ToLower(in.tenant.Suffix(name))
		if in.probed[lower] || !strings.Contains(suffix, "order") || containsFragment(suffix, auxiliaryOrderFragments) {
			continue
		}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		return []models.FallbackAttempt{skipped(tier, "", "no other order tables in scope")}
	}

	var attempts []models.FallbackAttempt
	for _, table := range candidates {
		attempt := r.probeOrderTable(ctx, in, tier, table)
		attempts = append(attempts, attempt)
		if attempt.SkipReason == "" && attempt.Count > 0 {
			break
		}
	}
	return attempts
}

// probeOrderTable counts or lists one order-shaped table using its own
// date column.
func (r *FallbackResearcher) probeOrderTable(ctx context.Context, in *probeInput, tier models.FallbackTier, table string) models.FallbackAttempt {
	in.probed[strings.ToLower(table)] = true

	columns, err := in.ds.GetColumns(ctx, table)
	if err != nil {
		return skipped(tier, table, "columns unavailable: "+err.Error())
	}
	names := columnNames(columns)
	dateCol := pickDateColumn(names)
	if in.filter != nil && dateCol == "" {
		return skipped(tier, table, "no date column for the filter")
	}

	base := func(b sq.SelectBuilder) sq.SelectBuilder {
		b = b.From(in.quote(table))
		if hasColumnFold(names, "type") {
			b = b.Where(sq.Eq{in.quote("type"): legacyOrderPostType})
		}
		if hasColumnFold(names, "status") {
			b = b.Where(sq.NotEq{in.quote("status"): excludedOrderStatuses})
		}
		if dateCol != "" {
			b = in.filter.apply(b, in.quote(dateCol))
		}
		return b
	}

	if in.countShaped {
		expr := "COUNT(*)"
		if hasColumnFold(names, "order_id") && !hasColumnFold(names, "id") {
			expr = fmt.Sprintf("COUNT(DISTINCT %s)", in.quote("order_id"))
		}
		return r.countAttempt(ctx, in, tier, table, base(sq.Select(fmt.Sprintf("%s AS %s", expr, in.countAlias))))
	}

	var selected []string
	for _, c := range orderSummaryColumns {
		if actual, ok := findColumnFold(names, c); ok {
			selected = append(selected, in.quote(actual))
		}
	}
	if dateCol != "" {
		selected = append(selected, in.quote(dateCol))
	}
	if len(selected) == 0 {
		return skipped(tier, table, "no order columns to list")
	}

	b := base(sq.Select(selected...)).Limit(uint64(in.limit))
	if dateCol != "" {
		b = b.OrderBy(in.quote(dateCol) + " DESC")
	}
	attempt := r.listAttempt(ctx, in, tier, table, b)
	if attempt.Count > 0 {
		r.enrichOrders(ctx, in, table, attempt.Rows)
	}
	return attempt
}

// probeUnfiltered counts legacy orders with no filter at all. It only runs
// when a filter was in effect; otherwise the earlier tiers already were
// unfiltered.
func (r *FallbackResearcher) probeUnfiltered(ctx context.Context, in *probeInput) models.FallbackAttempt {
	const tier = models.TierUnfilteredAll
	table, ok := in.table("posts")
	if !ok {
		return skipped(tier, in.tenant.Table("posts"), "table not in scope")
	}
	if in.filter == nil {
		return skipped(tier, table, "no filter in effect")
	}
	b := sq.Select("COUNT(*) AS "+defaultCountAlias).
		From(in.quote(table)).
		Where(sq.Eq{in.quote("post_type"): legacyOrderPostType}).
		Where(sq.NotEq{in.quote("post_status"): excludedOrderStatuses})
	return r.countAttempt(ctx, in, tier, table, b)
}

func containsFragment(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
