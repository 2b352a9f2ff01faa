package threat

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/features"
)

// Vector layers attack-signature scores and statistical anomaly measures on
// top of the structural feature vector.
type Vector struct {
	features.Vector

	SQLiScore      float64 `json:"sqli_score"`
	XSSScore       float64 `json:"xss_score"`
	RCEScore       float64 `json:"rce_score"`
	XXEScore       float64 `json:"xxe_score"`
	TraversalScore float64 `json:"traversal_score"`

	RequestVelocity   float64 `json:"request_velocity"` // requests/sec over session
	PayloadComplexity float64 `json:"payload_complexity"`
	ObfuscationLevel  float64 `json:"obfuscation_level"`

	ZScore              float64 `json:"z_score"`
	MahalanobisDistance float64 `json:"mahalanobis_distance"`
	SessionAnomaly      float64 `json:"session_anomaly"`
}

const historyDepth = 100

// attack signature fragments, each matched against the canonical content.
// Scores are normalized to [0,1]; this is intentionally coarser than the rule
// catalog, it feeds the statistical model rather than the verdict.
var (
	sqliPattern      = regexp.MustCompile(`(?i)(union\s+(all\s+)?select|or\s+\d+\s*=\s*\d+|'\s*or\s*'|sleep\s*\(|benchmark\s*\(|information_schema|--|/\*)`)
	xssPattern       = regexp.MustCompile(`(?i)(<\s*script|javascript:|on\w+\s*=|alert\s*\(|document\.cookie|<\s*iframe|<\s*img[^>]+onerror)`)
	rcePattern       = regexp.MustCompile(`(?i)([;&|]\s*(ls|cat|id|whoami|wget|curl|nc)\b|\$\(|` + "`" + `|/bin/(sh|bash)|exec\s*\(|system\s*\()`)
	xxePattern       = regexp.MustCompile(`(?i)(<!ENTITY|<!DOCTYPE|SYSTEM\s+["']|<\?xml|<!\[CDATA\[)`)
	traversalPattern = regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e%2f|/etc/(passwd|shadow)|\\windows\\)`)
)

type clientHistory struct {
	vectors []features.Vector // FIFO, newest last
}

type sessionProfile struct {
	requestCount  int
	paths         map[string]struct{}
	firstSeen     time.Time
	lastSeen      time.Time
	lastInterval  time.Duration
	lastIP        string
	lastUserAgent string
	ipChanged     bool
	uaChanged     bool
}

// Extractor maintains per-client rolling history and per-session profiles.
// Extract reads; Record mutates. The split keeps extraction idempotent.
type Extractor struct {
	mu       sync.RWMutex
	history  map[string]*clientHistory
	sessions map[string]*sessionProfile
	depth    int
}

func NewExtractor(depth int) *Extractor {
	if depth <= 0 || depth > historyDepth {
		depth = historyDepth
	}
	return &Extractor{
		history:  make(map[string]*clientHistory),
		sessions: make(map[string]*sessionProfile),
		depth:    depth,
	}
}

// Extract builds the threat vector for req from the structural vector and the
// recorded history of req.ClientIP. It does not modify history.
func (e *Extractor) Extract(req *types.RequestContext, fv features.Vector) Vector {
	content := strings.ToLower(features.Concat(req))

	v := Vector{Vector: fv}
	v.SQLiScore = signatureScore(sqliPattern, content)
	v.XSSScore = signatureScore(xssPattern, content)
	v.RCEScore = signatureScore(rcePattern, content)
	v.XXEScore = signatureScore(xxePattern, content)
	v.TraversalScore = signatureScore(traversalPattern, content)

	v.PayloadComplexity = payloadComplexity(fv)
	v.ObfuscationLevel = obfuscationLevel(fv)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if h, ok := e.history[req.ClientIP]; ok && len(h.vectors) >= 2 {
		v.ZScore = zScore(fv.EntropyScore, h.vectors)
		v.MahalanobisDistance = mahalanobis(fv, h.vectors)
	}

	if s, ok := e.sessions[sessionKey(req)]; ok {
		v.RequestVelocity = velocity(s)
		v.SessionAnomaly = sessionAnomaly(s)
	}

	return v
}

// Record appends the request to the client's rolling history and updates its
// session profile. Call once per request, after Extract.
func (e *Extractor) Record(req *types.RequestContext, fv features.Vector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.history[req.ClientIP]
	if !ok {
		h = &clientHistory{}
		e.history[req.ClientIP] = h
	}
	h.vectors = append(h.vectors, fv)
	if len(h.vectors) > e.depth {
		h.vectors = h.vectors[len(h.vectors)-e.depth:]
	}

	key := sessionKey(req)
	s, ok := e.sessions[key]
	now := req.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	if !ok {
		s = &sessionProfile{
			paths:         make(map[string]struct{}),
			firstSeen:     now,
			lastIP:        req.ClientIP,
			lastUserAgent: req.UserAgent(),
		}
		e.sessions[key] = s
	}
	s.requestCount++
	s.paths[req.Path] = struct{}{}
	if !s.lastSeen.IsZero() {
		s.lastInterval = now.Sub(s.lastSeen)
	}
	s.lastSeen = now
	if s.lastIP != req.ClientIP {
		s.ipChanged = true
		s.lastIP = req.ClientIP
	}
	if ua := req.UserAgent(); ua != s.lastUserAgent {
		s.uaChanged = true
		s.lastUserAgent = ua
	}
}

// HistoryLen reports the recorded history depth for a client, for tests.
func (e *Extractor) HistoryLen(clientIP string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if h, ok := e.history[clientIP]; ok {
		return len(h.vectors)
	}
	return 0
}

func sessionKey(req *types.RequestContext) string {
	if cookie := req.Header("Cookie"); cookie != "" {
		return req.TenantID + "|" + cookie
	}
	return req.TenantID + "|" + req.ClientIP + "|" + req.UserAgent()
}

func signatureScore(pattern *regexp.Regexp, content string) float64 {
	matches := pattern.FindAllStringIndex(content, 4)
	return math.Min(float64(len(matches))*0.25, 1.0)
}

func payloadComplexity(fv features.Vector) float64 {
	if fv.BodyLength == 0 {
		return 0
	}
	size := math.Min(float64(fv.BodyLength)/8192.0, 1.0)
	return clamp01(0.5*size + 0.3*fv.SpecialCharDensity*4 + 0.2*fv.EntropyScore/8)
}

func obfuscationLevel(fv features.Vector) float64 {
	encoded := math.Min(fv.URLEncodingDensity*10, 1.0)
	entropy := 0.0
	if fv.EntropyScore > 5.5 {
		entropy = math.Min((fv.EntropyScore-5.5)/2.5, 1.0)
	}
	return clamp01(0.6*encoded + 0.4*entropy)
}

func zScore(value float64, history []features.Vector) float64 {
	mean, std := meanStd(history, func(v features.Vector) float64 { return v.EntropyScore })
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

// mahalanobis is the simplified (diagonal covariance) distance over a small
// set of numeric feature dimensions.
func mahalanobis(fv features.Vector, history []features.Vector) float64 {
	dims := []func(v features.Vector) float64{
		func(v features.Vector) float64 { return v.EntropyScore },
		func(v features.Vector) float64 { return v.SpecialCharDensity },
		func(v features.Vector) float64 { return float64(v.ContentChars) },
		func(v features.Vector) float64 { return float64(v.SQLKeywordCount + v.JSKeywordCount) },
	}
	sum := 0.0
	used := 0
	for _, dim := range dims {
		mean, std := meanStd(history, dim)
		if std == 0 {
			continue
		}
		d := (dim(fv) - mean) / std
		sum += d * d
		used++
	}
	if used == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(used))
}

func meanStd(history []features.Vector, dim func(v features.Vector) float64) (float64, float64) {
	n := float64(len(history))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range history {
		sum += dim(v)
	}
	mean := sum / n
	variance := 0.0
	for _, v := range history {
		d := dim(v) - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func velocity(s *sessionProfile) float64 {
	elapsed := s.lastSeen.Sub(s.firstSeen).Seconds()
	if elapsed <= 0 {
		return float64(s.requestCount)
	}
	return float64(s.requestCount) / elapsed
}

func sessionAnomaly(s *sessionProfile) float64 {
	score := 0.0
	if s.requestCount > 0 {
		pathRatio := float64(len(s.paths)) / float64(s.requestCount)
		if s.requestCount > 10 && pathRatio > 0.9 {
			score += 0.3 // every request hits a new path
		}
	}
	if s.lastInterval > 0 && s.lastInterval < 200*time.Millisecond {
		score += 0.3
	}
	if s.ipChanged {
		score += 0.2
	}
	if s.uaChanged {
		score += 0.2
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
