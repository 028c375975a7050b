package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/services"
)

// AskToolName is the MCP tool that answers questions about site data.
const AskToolName = "ask_site_data"

// RegisterAskTool exposes the question pipeline as an MCP tool. The result
// is the same JSON payload the HTTP endpoint returns.
func RegisterAskTool(s *server.MCPServer, assistant services.AssistantService) {
	tool := mcp.NewTool(
		AskToolName,
		mcp.WithDescription("Answers a natural-language question about the site's content, "+
			"orders and members by running a read-only query. Requests to change a record "+
			"return requires_confirmation with a confirmation token; call again with "+
			"confirmed=true and that token to apply the change."),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question or instruction, in plain language"),
		),
		mcp.WithBoolean(
			"confirmed",
			mcp.Description("Set to true to apply a previously proposed change"),
		),
		mcp.WithString(
			"confirmation_token",
			mcp.Description("The confirmation_data.token returned with the proposed change"),
		),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return NewErrorResult("invalid_input", "question is required"), nil
		}

		ask := &models.AskRequest{
			Query:     question,
			Confirmed: req.GetBool("confirmed", false),
		}
		if token := strings.TrimSpace(req.GetString("confirmation_token", "")); token != "" {
			ask.ConfirmationData = &models.ConfirmationPayload{Token: token}
		}
		if ask.Confirmed && ask.ConfirmationData == nil {
			return NewErrorResult("invalid_input", "confirmation_token is required when confirmed is true"), nil
		}

		resp := assistant.Ask(ctx, ask)

		body, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	})
}
