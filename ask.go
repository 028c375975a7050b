package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/services"
)

type askOptions struct {
	tenantID     int
	confirmToken string
	jsonOutput   bool
}

func newAskCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Example: `  sitequery ask "how many posts were published last month"
  sitequery ask --tenant 3 "top 5 products by revenue"
  sitequery ask --confirm <token> "yes"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.tenantID > 0 {
				ctx = auth.WithClaims(ctx, &auth.Claims{TenantID: opts.tenantID})
			}

			req := &models.AskRequest{Query: strings.Join(args, " ")}
			if opts.confirmToken != "" {
				req.Confirmed = true
				req.ConfirmationData = &models.ConfirmationPayload{Token: opts.confirmToken}
			}

			resp := a.assistant.Ask(ctx, req)
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return printAnswer(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVar(&opts.tenantID, "tenant", 0, "tenant (site) id; overrides the configured tenant")
	cmd.Flags().StringVar(&opts.confirmToken, "confirm", "", "confirmation token from a previous change request")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the full response payload as JSON")
	return cmd
}

func printAnswer(w io.Writer, resp *models.ResponsePayload) error {
	if _, err := fmt.Fprintln(w, resp.Message); err != nil {
		return err
	}

	if resp.RequiresConfirmation {
		fmt.Fprintln(w, resp.ConfirmationMessage)
		if resp.ConfirmationData != nil {
			fmt.Fprintf(w, "\nTo apply this change, run:\n  sitequery ask --confirm %s \"yes\"\n", resp.ConfirmationData.Token)
		}
		return nil
	}

	if len(resp.Data) > 0 {
		fmt.Fprintln(w)
		if err := printRows(w, resp.Data); err != nil {
			return err
		}
	}

	if resp.SQLQuery != "" {
		fmt.Fprintf(w, "\nSQL: %s\n", resp.SQLQuery)
	}
	return nil
}

func printRows(w io.Writer, rows []*models.Row) error {
	columns := models.RowColumns(rows[0])
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			v, _ := row.Get(col)
			cells[i] = services.FormatDisplayValue(col, v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
