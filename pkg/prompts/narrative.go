package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// NarrativeSystemMessage frames result summarization.
const NarrativeSystemMessage = "You summarize database results for a site owner in one or two plain sentences. " +
	"Use only the numbers provided. Do not mention SQL or table names."

// NarrativeSampleRows bounds how many rows are shown to the summarizer.
const NarrativeSampleRows = 10

// BuildNarrativePrompt creates the prompt that asks for a short summary of rows.
func BuildNarrativePrompt(question string, rows []*models.Row, total int) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("Question: %s\n\n", question))
	prompt.WriteString(fmt.Sprintf("Result rows: %d\n", total))

	sample := rows
	if len(sample) > NarrativeSampleRows {
		sample = sample[:NarrativeSampleRows]
	}
	if len(sample) > 0 {
		prompt.WriteString("Sample:\n")
		for _, row := range sample {
			data, err := json.Marshal(row)
			if err != nil {
				continue
			}
			prompt.Write(data)
			prompt.WriteByte('\n')
		}
	}

	prompt.WriteString("\nAnswer the question in at most two sentences.")
	return prompt.String()
}
