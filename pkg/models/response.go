package models

// AskRequest is one question from a user.
type AskRequest struct {
	Query            string               `json:"query"`
	Confirmed        bool                 `json:"confirmed,omitempty"`
	ConfirmationData *ConfirmationPayload `json:"confirmation_data,omitempty"`
}

// Analysis carries research details attached to a response.
type Analysis struct {
	Intent          IntentKind        `json:"intent,omitempty"`
	Rule            string            `json:"rule,omitempty"`
	Tables          []string          `json:"tables,omitempty"`
	RowCount        int               `json:"row_count"`
	Fallback        *FallbackResult   `json:"fallback,omitempty"`
	Diagnostics     *EmptyDiagnostics `json:"diagnostics,omitempty"`
	ConfirmedZero   bool              `json:"confirmed_zero,omitempty"`
	FilterTooStrict bool              `json:"filter_too_strict,omitempty"`
}

// ResponsePayload is the single response shape for every question.
type ResponsePayload struct {
	Success bool `json:"success"`
	// Data holds result rows; null for refusals and non-data answers.
	Data                 []*Row               `json:"data"`
	Message              string               `json:"message"`
	SQLQuery             string               `json:"sql_query,omitempty"`
	Analysis             *Analysis            `json:"analysis,omitempty"`
	RequiresConfirmation bool                 `json:"requires_confirmation,omitempty"`
	ConfirmationMessage  string               `json:"confirmation_message,omitempty"`
	ConfirmationData     *ConfirmationPayload `json:"confirmation_data,omitempty"`
}
