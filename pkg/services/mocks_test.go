package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/platform"
)

// fakeDatasource serves a fixed table layout and answers queries through
// QueryFunc. Every statement is recorded.
type fakeDatasource struct {
	mu      sync.Mutex
	columns map[string][]string

	// QueryFunc answers Query. If nil, every statement returns no rows.
	QueryFunc func(sqlQuery string, args []any) (*datasource.QueryResult, error)

	queries        []string
	args           [][]any
	listTableCalls int
}

func newFakeDatasource(columns map[string][]string) *fakeDatasource {
	return &fakeDatasource{columns: columns}
}

func (f *fakeDatasource) ListTables(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	f.listTableCalls++
	f.mu.Unlock()

	tables := make([]string, 0, len(f.columns))
	for t := range f.columns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables, nil
}

func (f *fakeDatasource) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	names, ok := f.columns[table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	cols := make([]datasource.Column, len(names))
	for i, n := range names {
		cols[i] = datasource.Column{Name: n, DataType: "varchar", OrdinalPosition: i + 1}
	}
	return cols, nil
}

func (f *fakeDatasource) Query(ctx context.Context, sqlQuery string, args []any, limit int) (*datasource.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sqlQuery)
	f.args = append(f.args, args)
	fn := f.QueryFunc
	f.mu.Unlock()

	if fn == nil {
		return &datasource.QueryResult{}, nil
	}
	return fn(sqlQuery, args)
}

func (f *fakeDatasource) Dialect() datasource.Dialect { return mysql.Dialect{} }

func (f *fakeDatasource) Ping(ctx context.Context) error { return nil }

func (f *fakeDatasource) Close() error { return nil }

// Queries returns the statements run so far.
func (f *fakeDatasource) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// queriesContaining returns recorded statements containing fragment.
func (f *fakeDatasource) queriesContaining(fragment string) []string {
	var out []string
	for _, q := range f.Queries() {
		if strings.Contains(q, fragment) {
			out = append(out, q)
		}
	}
	return out
}

var _ datasource.Datasource = (*fakeDatasource)(nil)

// resultOf builds a query result from rows, taking columns from the first.
func resultOf(rows ...*models.Row) *datasource.QueryResult {
	res := &datasource.QueryResult{Rows: rows, RowCount: len(rows)}
	if len(rows) > 0 {
		for _, c := range models.RowColumns(rows[0]) {
			res.Columns = append(res.Columns, datasource.ColumnInfo{Name: c})
		}
	}
	return res
}

// singleSiteColumns is a single-tenant store with both order schemas.
func singleSiteColumns() map[string][]string {
	return map[string][]string{
		"wp_posts":                   {"ID", "post_author", "post_date", "post_title", "post_status", "post_type"},
		"wp_postmeta":                {"meta_id", "post_id", "meta_key", "meta_value"},
		"wp_users":                   {"ID", "user_login", "user_pass", "user_email", "display_name"},
		"wp_usermeta":                {"umeta_id", "user_id", "meta_key", "meta_value"},
		"wp_options":                 {"option_id", "option_name", "option_value"},
		"wp_comments":                {"comment_ID", "comment_post_ID", "comment_date", "comment_content"},
		"wp_wc_orders":               {"id", "status", "currency", "type", "total_amount", "customer_id", "date_created_gmt"},
		"wp_wc_orders_meta":          {"id", "order_id", "meta_key", "meta_value"},
		"wp_wc_order_stats":          {"order_id", "parent_id", "date_created", "num_items_sold", "total_sales", "status", "customer_id"},
		"wp_wc_order_product_lookup": {"order_item_id", "order_id", "product_id", "date_created", "product_qty"},
		"wp_wc_customer_lookup":      {"customer_id", "user_id", "first_name", "last_name"},
	}
}

func singleSiteTenant() models.Tenant {
	return models.Tenant{
		ID:           1,
		NetworkID:    1,
		BasePrefix:   "wp_",
		SharedTables: []string{"wp_users", "wp_usermeta"},
	}
}

// fakePlatform records calls to the resource API.
type fakePlatform struct {
	configured        bool
	ResolveByNameFunc func(resource, name string) (*platform.Resource, error)
	ApplyFunc         func(op *models.PendingOperation) (*platform.Resource, error)

	applied []models.PendingOperation
}

func (f *fakePlatform) Configured() bool { return f.configured }

func (f *fakePlatform) ResolveByName(ctx context.Context, resource, name string) (*platform.Resource, error) {
	if f.ResolveByNameFunc == nil {
		return &platform.Resource{ID: 1, Title: name}, nil
	}
	return f.ResolveByNameFunc(resource, name)
}

func (f *fakePlatform) Apply(ctx context.Context, op *models.PendingOperation) (*platform.Resource, error) {
	f.applied = append(f.applied, *op)
	if f.ApplyFunc == nil {
		return &platform.Resource{ID: op.TargetID}, nil
	}
	return f.ApplyFunc(op)
}

var _ platform.Client = (*fakePlatform)(nil)
