package types

// RuleField names the request surface a signature rule is evaluated against.
type RuleField string

const (
	FieldRequest  RuleField = "request"
	FieldPath     RuleField = "path"
	FieldQuery    RuleField = "query"
	FieldHeaders  RuleField = "headers"
	FieldBody     RuleField = "body"
	FieldResponse RuleField = "response"
)

// Rule is one entry of the signature catalog. The catalog content is
// configuration data; global and tenant rules are merged by the caller and
// handed to the engine as an ordered list.
type Rule struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Pattern  string    `json:"pattern"`
	Field    RuleField `json:"field"`
	Severity string    `json:"severity"`
	Score    float64   `json:"score"`
	Category string    `json:"category"`
	Action   string    `json:"action"`
	Enabled  bool      `json:"enabled"`
}

// RuleProvider yields the merged, ordered rule catalog for a tenant.
type RuleProvider interface {
	RulesFor(tenantID string) []Rule
}
