package bot

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vigilguard/vigil/pkg/types"
)

const (
	trackerDepth = 100

	scrapeThreshold      = 60
	stuffingBotThreshold = 65
)

// Sample is the retained footprint of one request. Bodies are never kept.
type Sample struct {
	Timestamp       time.Time
	Method          string
	Path            string
	UserAgent       string
	Referer         string
	HeaderSignature string
}

// SampleFromRequest strips a request down to its trackable footprint.
func SampleFromRequest(req *types.RequestContext) Sample {
	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Sample{
		Timestamp:       ts,
		Method:          req.Method,
		Path:            req.Path,
		UserAgent:       req.UserAgent(),
		Referer:         req.Header("Referer"),
		HeaderSignature: strings.Join(names, ","),
	}
}

// Tracker keeps a bounded per-IP window of recent samples. Record mutates,
// everything else reads a copy.
type Tracker struct {
	mu   sync.RWMutex
	byIP map[string][]Sample
}

func NewTracker() *Tracker {
	return &Tracker{byIP: make(map[string][]Sample)}
}

func (t *Tracker) Record(ip string, s Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := append(t.byIP[ip], s)
	if len(window) > trackerDepth {
		window = window[len(window)-trackerDepth:]
	}
	t.byIP[ip] = window
}

func (t *Tracker) Samples(ip string) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	window := t.byIP[ip]
	out := make([]Sample, len(window))
	copy(out, window)
	return out
}

// Sweep drops IPs whose newest sample is older than maxIdle.
func (t *Tracker) Sweep(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, window := range t.byIP {
		if len(window) == 0 || now.Sub(window[len(window)-1].Timestamp) > maxIdle {
			delete(t.byIP, ip)
			removed++
		}
	}
	return removed
}

// PatternResult reports a traffic-shape verdict over a sample window.
type PatternResult struct {
	Flagged    bool     `json:"flagged"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators,omitempty"`
}

var trailingDigits = regexp.MustCompile(`(\d+)/?$`)

// DetectScrapingPattern inspects a sample window for enumeration traffic.
func DetectScrapingPattern(samples []Sample) PatternResult {
	var res PatternResult
	if len(samples) < 5 {
		return res
	}

	if sequentialPaths(samples) {
		res.Score += 30
		res.Indicators = append(res.Indicators, "sequential_paths")
	}
	if requestRate(samples) > 10 {
		res.Score += 25
		res.Indicators = append(res.Indicators, "high_request_rate")
	}
	if headerConsistency(samples) > 0.9 || dominantUserAgentCount(samples) > 20 {
		res.Score += 25
		res.Indicators = append(res.Indicators, "static_client_signature")
	}
	if refererlessFraction(samples) > 0.8 {
		res.Score += 20
		res.Indicators = append(res.Indicators, "missing_referers")
	}

	res.Score = math.Min(res.Score, 100)
	res.Flagged = res.Score >= scrapeThreshold
	return res
}

// DetectCredentialStuffingBot inspects a sample window for automated
// credential testing.
func DetectCredentialStuffingBot(samples []Sample) PatternResult {
	var res PatternResult
	if len(samples) < 5 {
		return res
	}

	var loginPosts []Sample
	credentialTargets := 0
	for _, s := range samples {
		if s.Method == "POST" && isLoginPath(s.Path) {
			loginPosts = append(loginPosts, s)
		}
		if isLoginPath(s.Path) || isAdminPath(s.Path) {
			credentialTargets++
		}
	}

	if len(loginPosts) >= 10 && requestRate(loginPosts) > 1 {
		res.Score += 30
		res.Indicators = append(res.Indicators, "rapid_login_posts")
	}
	if headerConsistency(samples) > 0.85 {
		res.Score += 20
		res.Indicators = append(res.Indicators, "uniform_headers")
	}
	if len(samples) >= 20 && userAgentCount(samples) <= 2 {
		res.Score += 15
		res.Indicators = append(res.Indicators, "static_user_agents")
	}
	if float64(credentialTargets)/float64(len(samples)) > 0.5 {
		res.Score += 20
		res.Indicators = append(res.Indicators, "credential_endpoints")
	}
	if machineTiming(samples) {
		res.Score += 15
		res.Indicators = append(res.Indicators, "machine_timing")
	}

	res.Score = math.Min(res.Score, 100)
	res.Flagged = res.Score >= stuffingBotThreshold
	return res
}

// sequentialPaths is true when three or more consecutive samples end in
// strictly incrementing numeric segments, the shape of an ID walk.
func sequentialPaths(samples []Sample) bool {
	run := 1
	prev := -1
	for _, s := range samples {
		m := trailingDigits.FindStringSubmatch(s.Path)
		if m == nil {
			prev = -1
			run = 1
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			prev = -1
			run = 1
			continue
		}
		if prev >= 0 && n == prev+1 {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
		prev = n
	}
	return false
}

func requestRate(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp).Seconds()
	if span <= 0 {
		span = 0.001
	}
	return float64(len(samples)) / span
}

func headerConsistency(samples []Sample) float64 {
	counts := make(map[string]int)
	for _, s := range samples {
		counts[s.HeaderSignature]++
	}
	top := 0
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	return float64(top) / float64(len(samples))
}

func userAgentCount(samples []Sample) int {
	agents := make(map[string]struct{})
	for _, s := range samples {
		agents[s.UserAgent] = struct{}{}
	}
	return len(agents)
}

func dominantUserAgentCount(samples []Sample) int {
	counts := make(map[string]int)
	top := 0
	for _, s := range samples {
		counts[s.UserAgent]++
		if counts[s.UserAgent] > top {
			top = counts[s.UserAgent]
		}
	}
	return top
}

func refererlessFraction(samples []Sample) float64 {
	missing := 0
	for _, s := range samples {
		if s.Referer == "" {
			missing++
		}
	}
	return float64(missing) / float64(len(samples))
}

// machineTiming is true for sub-500ms mean intervals with low variance,
// the cadence of a tight retry loop rather than a human.
func machineTiming(samples []Sample) bool {
	if len(samples) < 5 {
		return false
	}
	intervals := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		intervals = append(intervals, samples[i].Timestamp.Sub(samples[i-1].Timestamp).Seconds()*1000)
	}
	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))
	if mean >= 500 {
		return false
	}
	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(variance / float64(len(intervals)))
	return stddev < 150
}
