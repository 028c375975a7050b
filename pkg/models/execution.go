package models

// OutcomeKind discriminates the result of running generated SQL.
type OutcomeKind string

const (
	OutcomeRows        OutcomeKind = "rows"
	OutcomeEmpty       OutcomeKind = "empty"
	OutcomeSchemaError OutcomeKind = "schema_error"
	OutcomeOtherError  OutcomeKind = "other_error"
)

// GeneratedQuery is one completion-produced statement and the prompt
// behind it. It is discarded once executed.
type GeneratedQuery struct {
	SQL    string `json:"sql"`
	Prompt string `json:"-"`
}

// TableDiagnostic describes one table referenced by a statement that
// returned nothing.
type TableDiagnostic struct {
	Table   string `json:"table"`
	Exists  bool   `json:"exists"`
	InScope bool   `json:"in_scope"`
}

// EmptyDiagnostics explains an empty result. It is collected for logs and
// never changes the answer.
type EmptyDiagnostics struct {
	Tables []TableDiagnostic `json:"tables"`
	// WhereClause is the filter of the original statement, if any.
	WhereClause string `json:"where_clause,omitempty"`
	// RowsWithoutWhere is true when the statement returns rows once its
	// WHERE clause is removed.
	RowsWithoutWhere bool `json:"rows_without_where"`
}

// ExecutionOutcome is the classified result of one statement.
type ExecutionOutcome struct {
	Kind    OutcomeKind `json:"kind"`
	SQL     string      `json:"sql"`
	Columns []string    `json:"columns,omitempty"`
	Rows    []*Row      `json:"rows,omitempty"`
	// Diagnostics is populated for OutcomeEmpty.
	Diagnostics *EmptyDiagnostics `json:"diagnostics,omitempty"`
	// Detail carries the driver message; it is logged, never shown to users.
	Detail string `json:"-"`
	// UserMessage is the safe text for error outcomes.
	UserMessage string `json:"user_message,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
}

// IsError reports whether the outcome is one of the error kinds.
func (o *ExecutionOutcome) IsError() bool {
	return o.Kind == OutcomeSchemaError || o.Kind == OutcomeOtherError
}
