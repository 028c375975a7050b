package models

// IntentKind is the classifier's decision about what a question asks for.
type IntentKind string

const (
	IntentCapability   IntentKind = "capability"
	IntentFetch        IntentKind = "fetch"
	IntentEditByName   IntentKind = "edit_by_name"
	IntentAPIOperation IntentKind = "api_operation"
	IntentUnrecognized IntentKind = "unrecognized"
)

// IntentResult records the decision and the rule that produced it.
type IntentResult struct {
	Kind IntentKind `json:"kind"`
	// Rule is the name of the first rule that matched.
	Rule string `json:"rule"`
	// Name is the extracted content name for IntentEditByName.
	Name string `json:"name,omitempty"`
	// ContentType is the domain noun the question refers to, if any.
	ContentType string `json:"content_type,omitempty"`
}
