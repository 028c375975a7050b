package models

// Operation method constants for the host resource API.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// PendingOperation is a create/update/delete awaiting user confirmation.
type PendingOperation struct {
	Method   string         `json:"method"`
	Resource string         `json:"resource"`
	TargetID int64          `json:"target_id,omitempty"`
	Title    string         `json:"title,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
	TenantID int            `json:"tenant_id"`
}

// ConfirmationPayload is echoed back by the client to confirm an operation.
// Token is a signed copy of Operation; only the token is trusted.
type ConfirmationPayload struct {
	Token     string           `json:"token"`
	Operation PendingOperation `json:"operation"`
}
