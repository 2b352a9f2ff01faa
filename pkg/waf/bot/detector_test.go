package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/types"
)

func browserRequest() *types.RequestContext {
	return &types.RequestContext{
		Method: "GET",
		Path:   "/products",
		Headers: map[string][]string{
			"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"},
			"Accept":          {"text/html,application/xhtml+xml"},
			"Accept-Language": {"en-US,en;q=0.9"},
			"Accept-Encoding": {"gzip, deflate, br"},
			"Referer":         {"https://example.com/"},
			"Cookie":          {"session=abc"},
		},
		ClientIP: "203.0.113.5",
	}
}

func TestAttackToolOnProbePath(t *testing.T) {
	d := NewDetector()

	res := d.Analyze(&types.RequestContext{
		Method: "GET",
		Path:   "/wp-admin",
		Headers: map[string][]string{
			"User-Agent": {"sqlmap/1.7.2#stable (https://sqlmap.org)"},
		},
		ClientIP: "198.51.100.9",
	})

	assert.GreaterOrEqual(t, res.Score, 60.0)
	assert.True(t, res.IsBot)
	assert.Equal(t, "attack_tool", res.BotType)
	assert.Contains(t, res.Indicators, "attack_tool:sqlmap")
}

func TestBrowserRequestScoresLow(t *testing.T) {
	d := NewDetector()

	res := d.Analyze(browserRequest())

	assert.Less(t, res.Score, 60.0)
	assert.False(t, res.IsBot)
}

func TestMissingUserAgentAndHeaders(t *testing.T) {
	d := NewDetector()

	res := d.Analyze(&types.RequestContext{
		Method:   "GET",
		Path:     "/",
		Headers:  map[string][]string{},
		ClientIP: "198.51.100.9",
	})

	// 25 for the absent agent plus the full 40 header axis
	assert.InDelta(t, 65.0, res.Score, 0.01)
	assert.True(t, res.IsBot)
	assert.Contains(t, res.Indicators, "missing_user_agent")
}

func TestMethodAnomalyAndOversizedBody(t *testing.T) {
	d := NewDetector()

	req := browserRequest()
	req.Method = "TRACE"
	req.Body = make([]byte, (1<<20)+1)

	res := d.Analyze(req)
	assert.Contains(t, res.Indicators, "method_anomaly")
	assert.Contains(t, res.Indicators, "oversized_body")
}

func TestDetectScrapingPattern(t *testing.T) {
	base := time.Now()
	samples := make([]Sample, 0, 30)
	for i := 0; i < 30; i++ {
		samples = append(samples, Sample{
			Timestamp:       base.Add(time.Duration(i) * 50 * time.Millisecond),
			Method:          "GET",
			Path:            fmt.Sprintf("/catalog/item/%d", i+1),
			UserAgent:       "python-requests/2.31",
			HeaderSignature: "accept,host,user-agent",
		})
	}

	res := DetectScrapingPattern(samples)
	assert.True(t, res.Flagged)
	assert.Contains(t, res.Indicators, "sequential_paths")
	assert.Contains(t, res.Indicators, "high_request_rate")
	assert.Contains(t, res.Indicators, "static_client_signature")
	assert.Contains(t, res.Indicators, "missing_referers")
}

func TestScrapingNeedsEnoughSamples(t *testing.T) {
	res := DetectScrapingPattern([]Sample{{Path: "/a/1"}, {Path: "/a/2"}})
	assert.False(t, res.Flagged)
	assert.Zero(t, res.Score)
}

func TestDetectCredentialStuffingBot(t *testing.T) {
	base := time.Now()
	samples := make([]Sample, 0, 25)
	for i := 0; i < 25; i++ {
		samples = append(samples, Sample{
			Timestamp:       base.Add(time.Duration(i) * 300 * time.Millisecond),
			Method:          "POST",
			Path:            "/login",
			UserAgent:       "okhttp/4.12",
			HeaderSignature: "content-type,host,user-agent",
		})
	}

	res := DetectCredentialStuffingBot(samples)
	assert.True(t, res.Flagged)
	assert.GreaterOrEqual(t, res.Score, 65.0)
	assert.Contains(t, res.Indicators, "rapid_login_posts")
	assert.Contains(t, res.Indicators, "static_user_agents")
	assert.Contains(t, res.Indicators, "machine_timing")
}

func TestHumanLoginTrafficNotFlagged(t *testing.T) {
	base := time.Now()
	samples := []Sample{
		{Timestamp: base, Method: "GET", Path: "/", UserAgent: "Mozilla/5.0", Referer: "https://example.com", HeaderSignature: "a,b,c"},
		{Timestamp: base.Add(8 * time.Second), Method: "GET", Path: "/login", UserAgent: "Mozilla/5.0", Referer: "https://example.com/", HeaderSignature: "a,b,c"},
		{Timestamp: base.Add(21 * time.Second), Method: "POST", Path: "/login", UserAgent: "Mozilla/5.0", Referer: "https://example.com/login", HeaderSignature: "a,b,c,d"},
		{Timestamp: base.Add(40 * time.Second), Method: "GET", Path: "/dashboard", UserAgent: "Mozilla/5.0", Referer: "https://example.com/login", HeaderSignature: "a,b,c"},
		{Timestamp: base.Add(70 * time.Second), Method: "GET", Path: "/settings", UserAgent: "Mozilla/5.0", Referer: "https://example.com/dashboard", HeaderSignature: "a,b,c"},
	}

	assert.False(t, DetectCredentialStuffingBot(samples).Flagged)
	assert.False(t, DetectScrapingPattern(samples).Flagged)
}

func TestTrackerWindowBound(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 150; i++ {
		tr.Record("10.0.0.1", Sample{Timestamp: time.Now(), Path: fmt.Sprintf("/p/%d", i)})
	}

	samples := tr.Samples("10.0.0.1")
	assert.Len(t, samples, 100)
	assert.Equal(t, "/p/149", samples[len(samples)-1].Path)
}
