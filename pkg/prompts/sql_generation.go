// Package prompts builds the text sent to the completion service.
package prompts

import (
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// SQLGenerationSystemMessage frames every SQL generation call.
const SQLGenerationSystemMessage = "You are an expert SQL analyst for a content and commerce site. " +
	"You translate questions into a single read-only SELECT statement. " +
	"Respond with the SQL only: no explanation, no markdown."

// SQLGenerationContext is everything the generator prompt needs.
type SQLGenerationContext struct {
	Question string
	Dialect  string
	Tenant   models.Tenant
	Tables   []models.TableSchema
}

// CompactSchema renders tables as "table(col,col,...)", one per line.
func CompactSchema(tables []models.TableSchema) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(t.Name)
		b.WriteByte('(')
		b.WriteString(strings.Join(t.Columns, ","))
		b.WriteString(")\n")
	}
	return b.String()
}

// EstimateTokens approximates prompt size at four characters per token.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4))
}

// BuildSQLGenerationPrompt creates the user prompt for SQL generation.
func BuildSQLGenerationPrompt(ctx SQLGenerationContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Database Schema\n\n")
	prompt.WriteString(CompactSchema(ctx.Tables))
	prompt.WriteString("\n")

	prompt.WriteString("## Site Conventions\n\n")
	prompt.WriteString(fmt.Sprintf("- Tables for this site use the prefix `%s`. Use only the tables listed above.\n", ctx.Tenant.Prefix()))
	if len(ctx.Tenant.SharedTables) > 0 {
		prompt.WriteString(fmt.Sprintf("- Shared tables (all sites): %s.\n", strings.Join(ctx.Tenant.SharedTables, ", ")))
	}
	prompt.WriteString(fmt.Sprintf("- Content items live in `%s` and are distinguished by `post_type` ('post', 'page', 'product', 'shop_order').\n", ctx.Tenant.Table("posts")))
	prompt.WriteString("- Published content has `post_status = 'publish'`. Orders use statuses like 'wc-completed' and 'wc-processing'.\n")
	prompt.WriteString(fmt.Sprintf("- Extra attributes are key/value rows in `%s` (`meta_key`, `meta_value`), joined on `post_id`.\n", ctx.Tenant.Table("postmeta")))
	prompt.WriteString("- Order data may live in the posts table or in dedicated `wc_` order tables; prefer the dedicated tables when listed.\n")
	prompt.WriteString("\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Return exactly one SELECT statement. Never modify data.\n")
	prompt.WriteString("2. Never select password, token, secret or payment card columns.\n")
	prompt.WriteString("3. Alias aggregates with descriptive names (e.g. `COUNT(*) AS order_count`, `SUM(total) AS total_revenue`).\n")
	prompt.WriteString("4. For \"latest\" or \"last N\" questions, order by the date column descending and apply LIMIT.\n")
	prompt.WriteString("5. Limit row-returning queries to at most 100 rows.\n")
	if dialect := dialectHint(ctx.Dialect); dialect != "" {
		prompt.WriteString("6. ")
		prompt.WriteString(dialect)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(ctx.Question)
	prompt.WriteString("\n\nSQL:")

	return prompt.String()
}

func dialectHint(dialect string) string {
	switch dialect {
	case "mysql":
		return "Use MySQL syntax: backtick identifiers, DATE_SUB(NOW(), INTERVAL n DAY) for relative dates."
	case "postgres":
		return "Use PostgreSQL syntax: double-quoted identifiers, NOW() - INTERVAL 'n days' for relative dates."
	default:
		return ""
	}
}
