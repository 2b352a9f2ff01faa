package features

import (
	"math"
	"net"
	"sort"
	"strings"

	"github.com/vigilguard/vigil/pkg/types"
)

// Vector is the structural/content feature snapshot of one request. It is
// derived once per request and read-only afterwards; identical input yields a
// bit-identical vector.
type Vector struct {
	Method       string `json:"method"`
	PathLength   int    `json:"path_length"`
	QueryLength  int    `json:"query_length"`
	BodyLength   int    `json:"body_length"`
	HeaderCount  int    `json:"header_count"`
	ContentChars int    `json:"content_chars"`

	SpecialCharDensity float64 `json:"special_char_density"`
	URLEncodingDensity float64 `json:"url_encoding_density"`
	DigitDensity       float64 `json:"digit_density"`
	WhitespaceDensity  float64 `json:"whitespace_density"`
	UppercaseRatio     float64 `json:"uppercase_ratio"`
	EntropyScore       float64 `json:"entropy_score"`

	SQLKeywordCount    int `json:"sql_keyword_count"`
	JSKeywordCount     int `json:"js_keyword_count"`
	ShellCommandCount  int `json:"shell_command_count"`
	PathTraversalCount int `json:"path_traversal_count"`

	HasBody          bool `json:"has_body"`
	IsInternalClient bool `json:"is_internal_client"`

	// IPReputation is an opaque input attached by the caller, not derived
	// from request content.
	IPReputation float64 `json:"ip_reputation"`
}

var specialChars = `'"<>;()&|%$#@!{}[]` + "`"

var sqlKeywords = []string{
	"select", "union", "insert", "update", "delete", "drop", "truncate",
	"exec", "declare", "cast(", "convert(", "information_schema",
	"benchmark(", "sleep(", "waitfor", "or 1=1", "' or '", "--",
}

var jsKeywords = []string{
	"<script", "javascript:", "onerror", "onload", "onmouseover",
	"alert(", "eval(", "prompt(", "confirm(", "document.cookie",
	"settimeout(", "fromcharcode",
}

var shellCommands = []string{
	"/bin/sh", "/bin/bash", "wget ", "curl ", "nc -e", "netcat",
	"; ls", "| cat", "&& cat", "rm -rf", "chmod ", "base64 -d",
	"powershell", "cmd.exe", "$(", "`",
}

var traversalTokens = []string{"../", `..\`, "%2e%2e%2f", "%2e%2e/", "..%2f", "%2e%2e%5c"}

// Extractor turns requests into feature vectors, amortizing bursts of
// identical requests through a bounded cache keyed (method,path,clientIp).
type Extractor struct {
	cache *boundedCache
}

func NewExtractor(cacheSize int) *Extractor {
	if cacheSize <= 0 {
		cacheSize = 5000
	}
	return &Extractor{cache: newBoundedCache(cacheSize)}
}

// Extract computes the feature vector for req. Pure with respect to request
// content; the only side effect is a cache write.
func (e *Extractor) Extract(req *types.RequestContext) Vector {
	key := req.Method + "\x00" + req.Path + "\x00" + req.ClientIP
	if v, ok := e.cache.get(key); ok {
		return v
	}

	v := compute(req)
	e.cache.put(key, v)
	return v
}

// CacheLen reports the number of cached vectors.
func (e *Extractor) CacheLen() int {
	return e.cache.len()
}

func compute(req *types.RequestContext) Vector {
	content := Concat(req)
	n := len(content)
	denom := float64(maxInt(n, 1))
	lower := strings.ToLower(content)

	v := Vector{
		Method:       req.Method,
		PathLength:   len(req.Path),
		QueryLength:  len(req.Query.Encode()),
		BodyLength:   len(req.Body),
		HeaderCount:  len(req.Headers),
		ContentChars: n,
		HasBody:      len(req.Body) > 0,
	}

	var special, encoded, digits, whitespace, upper, letters int
	for i := 0; i < n; i++ {
		c := content[i]
		switch {
		case strings.IndexByte(specialChars, c) >= 0:
			special++
		case c >= '0' && c <= '9':
			digits++
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			whitespace++
		}
		if c == '%' {
			encoded++
		}
		if c >= 'A' && c <= 'Z' {
			upper++
			letters++
		} else if c >= 'a' && c <= 'z' {
			letters++
		}
	}

	v.SpecialCharDensity = float64(special) / denom
	v.URLEncodingDensity = float64(encoded) / denom
	v.DigitDensity = float64(digits) / denom
	v.WhitespaceDensity = float64(whitespace) / denom
	if letters > 0 {
		v.UppercaseRatio = float64(upper) / float64(letters)
	}
	v.EntropyScore = shannonEntropy(content)

	v.SQLKeywordCount = countOccurrences(lower, sqlKeywords)
	v.JSKeywordCount = countOccurrences(lower, jsKeywords)
	v.ShellCommandCount = countOccurrences(lower, shellCommands)
	v.PathTraversalCount = countOccurrences(lower, traversalTokens)

	v.IsInternalClient = isInternalIP(req.ClientIP)

	return v
}

// Concat builds the canonical analysis text: path + query + body + headers,
// headers serialized in sorted key order so the result is reproducible.
func Concat(req *types.RequestContext) string {
	var sb strings.Builder
	sb.WriteString(req.Path)
	if q := req.Query.Encode(); q != "" {
		sb.WriteString("?")
		sb.WriteString(q)
	}
	sb.Write(req.Body)

	keys := make([]string, 0, len(req.Headers))
	for k := range req.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, val := range req.Headers[k] {
			sb.WriteString(k)
			sb.WriteString(":")
			sb.WriteString(val)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var freq [256]int
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}
	total := float64(len(s))
	entropy := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func countOccurrences(lower string, needles []string) int {
	count := 0
	for _, needle := range needles {
		count += strings.Count(lower, needle)
	}
	return count
}

func isInternalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
