package prompts

import (
	"fmt"
	"strings"
)

// OperationSystemMessage frames operation planning.
const OperationSystemMessage = "You convert a site owner's change request into a JSON operation for the site's resource API. " +
	"Respond with JSON only."

// BuildOperationPrompt asks for a {method, resource, id, fields} plan.
// resources is the allow-list the plan must choose from.
func BuildOperationPrompt(request string, resources []string) string {
	var prompt strings.Builder

	prompt.WriteString("# Change Request\n\n")
	prompt.WriteString(request)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Allowed Resources\n\n")
	for _, r := range resources {
		prompt.WriteString(fmt.Sprintf("- %s\n", r))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "method": "create | update | delete",
  "resource": "one of the allowed resources",
  "id": 123,
  "fields": {"title": "New title", "status": "publish"}
}`)
	prompt.WriteString("\n```\n\n")
	prompt.WriteString("Use \"id\": 0 for create. Include only the fields the request changes. ")
	prompt.WriteString("If the request does not describe a change, respond with {\"method\": \"\"}.\n")

	return prompt.String()
}
