package threat

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/features"
)

func browserRequest(path string, ts time.Time) *types.RequestContext {
	return &types.RequestContext{
		Method:    "GET",
		Path:      path,
		Query:     url.Values{},
		Headers:   map[string][]string{"User-Agent": {"Mozilla/5.0"}},
		ClientIP:  "203.0.113.10",
		TenantID:  "acme",
		Timestamp: ts,
	}
}

func TestSignatureScoresForInjection(t *testing.T) {
	e := NewExtractor(50)
	fx := features.NewExtractor(10)

	req := &types.RequestContext{
		Method: "GET",
		Path:   "/search",
		Query: url.Values{
			"q": {"' OR '1'='1 UNION SELECT * FROM users -- sleep(5)"},
		},
		Headers:  map[string][]string{"User-Agent": {"Mozilla/5.0"}},
		ClientIP: "203.0.113.10",
	}

	v := e.Extract(req, fx.Extract(req))
	assert.Greater(t, v.SQLiScore, 0.0)
	assert.Equal(t, 0.0, v.XSSScore)
	assert.Equal(t, 0.0, v.RCEScore)
}

func TestSignatureScoreSaturates(t *testing.T) {
	e := NewExtractor(50)
	fx := features.NewExtractor(10)

	req := &types.RequestContext{
		Method:   "GET",
		Path:     "/files/../../../../../../etc/passwd",
		Query:    url.Values{"f": {"..%2f..%2f..%2fetc%2fshadow"}},
		Headers:  map[string][]string{},
		ClientIP: "203.0.113.10",
	}

	v := e.Extract(req, fx.Extract(req))
	assert.Equal(t, 1.0, v.TraversalScore)
}

func TestAnomalyNeedsRecordedHistory(t *testing.T) {
	e := NewExtractor(50)
	fx := features.NewExtractor(10)

	req := browserRequest("/products", time.Now())
	v := e.Extract(req, fx.Extract(req))
	assert.Equal(t, 0.0, v.ZScore)
	assert.Equal(t, 0.0, v.MahalanobisDistance)
}

func TestOutlierStandsOutFromHistory(t *testing.T) {
	e := NewExtractor(50)
	fx := features.NewExtractor(100)

	now := time.Now()
	paths := []string{"/products", "/products/1", "/products/2", "/cart", "/checkout"}
	for i, p := range paths {
		req := browserRequest(p, now.Add(time.Duration(i)*time.Second))
		e.Record(req, fx.Extract(req))
	}

	outlier := browserRequest("/search", now.Add(10*time.Second))
	outlier.Query = url.Values{"q": {"%3Cscript%3E<script>alert(document.cookie)</script>' OR '1'='1"}}

	v := e.Extract(outlier, fx.Extract(outlier))
	assert.Greater(t, v.MahalanobisDistance, 1.0)
}

func TestVelocityFromSessionProfile(t *testing.T) {
	e := NewExtractor(50)
	fx := features.NewExtractor(100)

	now := time.Now()
	for i := 0; i < 20; i++ {
		req := browserRequest("/products", now.Add(time.Duration(i)*100*time.Millisecond))
		e.Record(req, fx.Extract(req))
	}

	probe := browserRequest("/products", now.Add(2*time.Second))
	v := e.Extract(probe, fx.Extract(probe))
	assert.Greater(t, v.RequestVelocity, 5.0)
}

func TestHistoryDepthBounded(t *testing.T) {
	e := NewExtractor(10)
	fx := features.NewExtractor(100)

	now := time.Now()
	for i := 0; i < 25; i++ {
		req := browserRequest("/products", now.Add(time.Duration(i)*time.Second))
		e.Record(req, fx.Extract(req))
	}

	assert.Equal(t, 10, e.HistoryLen("203.0.113.10"))
}
