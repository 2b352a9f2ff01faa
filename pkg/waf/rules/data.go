package rules

import "github.com/vigilguard/vigil/pkg/types"

// DefaultCatalog is the built-in global signature set. Tenants extend or
// override it through the external rule store; the engine treats the merged
// list as opaque configuration.
func DefaultCatalog() []types.Rule {
	return []types.Rule{
		{
			ID:       "sqli-union-select",
			Name:     "SQL injection: UNION SELECT",
			Pattern:  `(?i)UNION\s+(?:ALL\s+)?SELECT\s+(?:\*|[a-z_][a-z0-9_]*(?:\s*,\s*[a-z_][a-z0-9_]*)*)`,
			Field:    types.FieldRequest,
			Severity: "critical",
			Score:    40,
			Category: "sql_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "sqli-boolean",
			Name:     "SQL injection: boolean tautology",
			Pattern:  `(?i)['"]\s*OR\s*['"]?\d+['"]?\s*=\s*['"]?\d+|['"]\s*OR\s*['"][^'"]*['"]\s*=\s*['"][^'"]*['"]`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    30,
			Category: "sql_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "sqli-time-based",
			Name:     "SQL injection: time-based probe",
			Pattern:  `(?i)(?:SLEEP|BENCHMARK|WAITFOR\s+DELAY)\s*\(\s*['"]?\d`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    35,
			Category: "sql_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "sqli-stacked",
			Name:     "SQL injection: stacked DDL/DML",
			Pattern:  `(?i)['";]\s*;\s*(?:INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE)\s+(?:INTO|FROM|TABLE|DATABASE|SCHEMA)`,
			Field:    types.FieldRequest,
			Severity: "critical",
			Score:    40,
			Category: "sql_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "xss-script-tag",
			Name:     "XSS: script tag",
			Pattern:  `(?i)<[^>]*script.*?>`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    30,
			Category: "xss",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "xss-event-handler",
			Name:     "XSS: inline event handler / javascript URI",
			Pattern:  `(?i)\bon\w+\s*=|javascript:|data:text/javascript|expression\s*\(`,
			Field:    types.FieldRequest,
			Severity: "medium",
			Score:    20,
			Category: "xss",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "xss-embed",
			Name:     "XSS: embedded active content",
			Pattern:  `(?i)<[^>]*iframe|<[^>]*object|<[^>]*embed|<[^>]*applet`,
			Field:    types.FieldBody,
			Severity: "medium",
			Score:    20,
			Category: "xss",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "rce-shell-chain",
			Name:     "Command injection: shell metacharacter chain",
			Pattern:  `(?i)[;&|]\s*(?:ls|dir|cat|type|more|wget|curl|nc|netcat|id|whoami)\b`,
			Field:    types.FieldRequest,
			Severity: "critical",
			Score:    40,
			Category: "command_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "rce-interpreter",
			Name:     "Command injection: interpreter invocation",
			Pattern:  `(?i)system\s*\(|exec\s*\(|shell_exec\s*\(|python\s+-c\s*['"]import|perl\s+-e|IEX\s*\(|Invoke-Expression`,
			Field:    types.FieldRequest,
			Severity: "critical",
			Score:    40,
			Category: "command_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "traversal-dotdot",
			Name:     "Path traversal: parent directory escape",
			Pattern:  `(?i)\.\./|\.\.\\|%2e%2e%2f|\.\.%2f|%2e%2e%5c`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    30,
			Category: "path_traversal",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "traversal-sensitive-file",
			Name:     "Path traversal: sensitive file access",
			Pattern:  `(?i)(?:etc|usr|var|opt|root|home)/[^/]*/?(?:passwd|shadow|bash_history|id_rsa)`,
			Field:    types.FieldRequest,
			Severity: "critical",
			Score:    40,
			Category: "path_traversal",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "nosql-operator",
			Name:     "NoSQL injection: query operator",
			Pattern:  `(?i)"\$(?:where|regex|exists|gt|lt|ne|nin|elemMatch|all|size)"\s*:|\$where\s*[:=]`,
			Field:    types.FieldBody,
			Severity: "high",
			Score:    30,
			Category: "nosql_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "ldap-filter",
			Name:     "LDAP injection: filter manipulation",
			Pattern:  `(?i)\(\s*[|&!]\s*\([^)]+\)|(?:objectClass|cn|uid|mail|userPassword)=\*`,
			Field:    types.FieldQuery,
			Severity: "medium",
			Score:    25,
			Category: "ldap_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "xxe-doctype",
			Name:     "XXE: external entity declaration",
			Pattern:  `(?i)<!ENTITY|<!DOCTYPE[^>]+SYSTEM|<xi:include`,
			Field:    types.FieldBody,
			Severity: "critical",
			Score:    40,
			Category: "xxe",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "ssrf-scheme",
			Name:     "SSRF: dangerous URL scheme or metadata endpoint",
			Pattern:  `(?i)(?:file|gopher|dict|php|glob|phar)://|169\.254\.169\.254|metadata\.(?:cloud|aws|google\.internal)`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    35,
			Category: "ssrf",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "template-expression",
			Name:     "Template injection: expression delimiters",
			Pattern:  `\{\{[^}]*\}\}|<%[^%]*%>|__proto__|constructor\s*\[`,
			Field:    types.FieldBody,
			Severity: "medium",
			Score:    25,
			Category: "template_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "header-crlf",
			Name:     "Header injection: CRLF response splitting",
			Pattern:  `[\r\n](?:HTTP/|Location:|Set-Cookie:|Content-Type:|Transfer-Encoding:)`,
			Field:    types.FieldHeaders,
			Severity: "high",
			Score:    30,
			Category: "header_injection",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "lfi-php-wrapper",
			Name:     "File inclusion: PHP stream wrapper",
			Pattern:  `(?i)php://(?:filter|input|data|expect)|%00(?:\.php|\.inc|\.jpg)`,
			Field:    types.FieldRequest,
			Severity: "high",
			Score:    35,
			Category: "file_inclusion",
			Action:   "block",
			Enabled:  true,
		},
		{
			ID:       "scanner-probe",
			Name:     "Scanner fingerprint in user agent",
			Pattern:  `(?i)sqlmap|nikto|nessus|acunetix|dirbuster|gobuster|masscan`,
			Field:    types.FieldHeaders,
			Severity: "medium",
			Score:    25,
			Category: "reconnaissance",
			Action:   "block",
			Enabled:  true,
		},
	}
}
