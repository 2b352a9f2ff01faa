package common

type contextKey string

const (
	RequestIdContextKey contextKey = "request_id"
	TenantContextKey    contextKey = "tenant_id"
	ClientIpContextKey  contextKey = "client_ip"
	DecisionContextKey  contextKey = "decision"
	LatencyContextKey   contextKey = "__execution_time"
)
