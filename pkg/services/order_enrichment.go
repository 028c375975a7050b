package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// orderMetaKeys are the metadata keys copied onto listed orders, mapped to
// the column they become.
var orderMetaKeys = map[string]string{
	"_order_total":          "order_total",
	"_order_currency":       "currency",
	"_customer_user":        "customer_id",
	"_payment_method_title": "payment_method",
	"_order_shipping":       "shipping_total",
	"_order_tax":            "tax_total",
}

// metaColumnOrder keeps enriched columns in the same order on every row.
var metaColumnOrder = []string{"order_total", "currency", "shipping_total", "tax_total", "payment_method", "customer_id"}

// metaSource says where an order table keeps its key/value metadata.
type metaSource struct {
	table  string // logical suffix
	keyCol string
}

var orderMetaSources = map[string]metaSource{
	"posts":     {table: "postmeta", keyCol: "post_id"},
	"wc_orders": {table: "wc_orders_meta", keyCol: "order_id"},
}

// customerLookup resolves a customer id column to a display name.
type customerLookup struct {
	table     string // logical suffix
	keyCol    string
	nameCols  []string
	appliesTo func(sourceSuffix string) bool
}

var customerLookups = []customerLookup{
	{
		table:     "wc_customer_lookup",
		keyCol:    "customer_id",
		nameCols:  []string{"first_name", "last_name"},
		appliesTo: func(s string) bool { return s == orderStatsSuffix },
	},
	{
		table:     "users",
		keyCol:    "ID",
		nameCols:  []string{"display_name"},
		appliesTo: func(s string) bool { return s != orderStatsSuffix },
	},
}

// enrichOrders adds metadata and customer names to listed order rows in
// place. Failures leave rows as they were.
func (r *FallbackResearcher) enrichOrders(ctx context.Context, in *probeInput, table string, rows []*models.Row) {
	suffix := strings.ToLower(in.tenant.Suffix(table))
	idCol := orderIDColumn(rows)
	if idCol == "" {
		return
	}

	if src, ok := orderMetaSources[suffix]; ok {
		if err := r.attachOrderMeta(ctx, in, src, idCol, rows); err != nil {
			r.logger.Debug("Order metadata enrichment skipped",
				zap.String("table", table),
				zap.Error(err))
		}
	}

	for _, lookup := range customerLookups {
		if !lookup.appliesTo(suffix) {
			continue
		}
		if err := r.attachCustomerNames(ctx, in, lookup, rows); err != nil {
			r.logger.Debug("Customer name enrichment skipped",
				zap.String("lookup", lookup.table),
				zap.Error(err))
		}
	}
}

func (r *FallbackResearcher) attachOrderMeta(ctx context.Context, in *probeInput, src metaSource, idCol string, rows []*models.Row) error {
	metaTable, ok := in.table(src.table)
	if !ok {
		return fmt.Errorf("%s not in scope", src.table)
	}
	ids := collectIDs(rows, idCol)
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(orderMetaKeys))
	for k := range orderMetaKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := sq.Select(in.quote(src.keyCol)+" AS owner_id", in.quote("meta_key"), in.quote("meta_value")).
		From(in.quote(metaTable)).
		Where(sq.Eq{in.quote(src.keyCol): ids}).
		Where(sq.Eq{in.quote("meta_key"): keys})
	_, res, err := r.runProbe(ctx, in, b, datasource.MaxQueryLimit)
	if err != nil {
		return err
	}

	byOwner := make(map[int64]map[string]any)
	for _, meta := range res.Rows {
		owner, _ := meta.Get("owner_id")
		id, ok := toInt64(owner)
		if !ok {
			continue
		}
		key, _ := meta.Get("meta_key")
		column, ok := orderMetaKeys[fmt.Sprint(key)]
		if !ok {
			continue
		}
		value, _ := meta.Get("meta_value")
		if byOwner[id] == nil {
			byOwner[id] = make(map[string]any)
		}
		byOwner[id][column] = normalizeMetaValue(value)
	}

	for _, row := range rows {
		v, _ := row.Get(idCol)
		id, ok := toInt64(v)
		if !ok {
			continue
		}
		for _, column := range metaColumnOrder {
			if _, exists := row.Get(column); exists {
				continue
			}
			if value, ok := byOwner[id][column]; ok {
				row.Set(column, value)
			}
		}
	}
	return nil
}

func (r *FallbackResearcher) attachCustomerNames(ctx context.Context, in *probeInput, lookup customerLookup, rows []*models.Row) error {
	lookupTable, ok := in.table(lookup.table)
	if !ok {
		return fmt.Errorf("%s not in scope", lookup.table)
	}
	ids := collectIDs(rows, "customer_id")
	if len(ids) == 0 {
		return nil
	}

	selected := []string{in.quote(lookup.keyCol) + " AS customer_key"}
	for _, c := range lookup.nameCols {
		selected = append(selected, in.quote(c))
	}
	b := sq.Select(selected...).
		From(in.quote(lookupTable)).
		Where(sq.Eq{in.quote(lookup.keyCol): ids})
	_, res, err := r.runProbe(ctx, in, b, datasource.MaxQueryLimit)
	if err != nil {
		return err
	}

	names := make(map[int64]string)
	for _, found := range res.Rows {
		key, _ := found.Get("customer_key")
		id, ok := toInt64(key)
		if !ok {
			continue
		}
		var parts []string
		for _, c := range lookup.nameCols {
			if v, ok := lookupFold(found, c); ok && v != nil {
				if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) > 0 {
			names[id] = strings.Join(parts, " ")
		}
	}

	for _, row := range rows {
		v, _ := row.Get("customer_id")
		id, ok := toInt64(v)
		if !ok {
			continue
		}
		if name, ok := names[id]; ok {
			row.Set("customer", name)
		}
	}
	return nil
}

// orderIDColumn finds the row identifier of listed orders.
func orderIDColumn(rows []*models.Row) string {
	if len(rows) == 0 {
		return ""
	}
	for _, c := range []string{"order_id", "id", "ID"} {
		if _, ok := rows[0].Get(c); ok {
			return c
		}
	}
	return ""
}

// collectIDs returns the distinct positive integer values of a column.
func collectIDs(rows []*models.Row, column string) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, row := range rows {
		v, ok := lookupFold(row, column)
		if !ok {
			continue
		}
		id, ok := toInt64(v)
		if !ok || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// normalizeMetaValue turns numeric metadata strings into numbers so they
// format like column values.
func normalizeMetaValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if n, ok := toInt64(s); ok {
		return n
	}
	if f, ok := parseNumeric(s); ok {
		return f
	}
	return s
}

func columnNames(columns []datasource.Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func hasColumnFold(names []string, name string) bool {
	_, ok := findColumnFold(names, name)
	return ok
}

func findColumnFold(names []string, name string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
