package features

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/types"
)

func sampleRequest() *types.RequestContext {
	return &types.RequestContext{
		Method:   "GET",
		Path:     "/products",
		Query:    url.Values{"page": {"2"}},
		Headers:  map[string][]string{"User-Agent": {"Mozilla/5.0"}},
		ClientIP: "203.0.113.10",
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	a := NewExtractor(10).Extract(sampleRequest())
	b := NewExtractor(10).Extract(sampleRequest())
	assert.Equal(t, a, b)
}

func TestInjectionPayloadRaisesKeywordCounts(t *testing.T) {
	req := &types.RequestContext{
		Method: "GET",
		Path:   "/search",
		Query: url.Values{
			"q": {"1' OR '1'='1 UNION SELECT password FROM users--"},
		},
		Headers:  map[string][]string{"User-Agent": {"Mozilla/5.0"}},
		ClientIP: "203.0.113.10",
	}

	v := NewExtractor(10).Extract(req)
	assert.GreaterOrEqual(t, v.SQLKeywordCount, 3)
	assert.Greater(t, v.SpecialCharDensity, 0.0)
	assert.Equal(t, 0, v.ShellCommandCount)
}

func TestScriptBodyCountsJSKeywords(t *testing.T) {
	req := &types.RequestContext{
		Method:   "POST",
		Path:     "/comments",
		Query:    url.Values{},
		Headers:  map[string][]string{"Content-Type": {"application/json"}},
		Body:     []byte(`{"comment":"<script>alert(document.cookie)</script>"}`),
		ClientIP: "203.0.113.10",
	}

	v := NewExtractor(10).Extract(req)
	assert.GreaterOrEqual(t, v.JSKeywordCount, 3)
	assert.True(t, v.HasBody)
	assert.Equal(t, len(req.Body), v.BodyLength)
}

func TestTraversalTokensCounted(t *testing.T) {
	req := &types.RequestContext{
		Method:   "GET",
		Path:     "/files/../../etc/passwd",
		Query:    url.Values{},
		Headers:  map[string][]string{},
		ClientIP: "203.0.113.10",
	}

	v := NewExtractor(10).Extract(req)
	assert.Equal(t, 2, v.PathTraversalCount)
}

func TestInternalClientDetection(t *testing.T) {
	internal := sampleRequest()
	internal.ClientIP = "10.1.2.3"
	assert.True(t, NewExtractor(10).Extract(internal).IsInternalClient)

	public := sampleRequest()
	public.ClientIP = "203.0.113.10"
	assert.False(t, NewExtractor(10).Extract(public).IsInternalClient)
}

func TestEntropyOrdering(t *testing.T) {
	uniform := sampleRequest()
	uniform.Path = "/aaaaaaaaaaaaaaaaaaaaaaaa"
	uniform.Headers = map[string][]string{}
	uniform.Query = url.Values{}

	mixed := sampleRequest()
	mixed.Path = "/x9!kQ%7Bz@3m&fW#1pL$v8c"
	mixed.Headers = map[string][]string{}
	mixed.Query = url.Values{}

	e := NewExtractor(10)
	assert.Greater(t, e.Extract(mixed).EntropyScore, e.Extract(uniform).EntropyScore)
}

func TestCacheBoundsAndHits(t *testing.T) {
	e := NewExtractor(2)

	first := sampleRequest()
	v1 := e.Extract(first)
	v2 := e.Extract(first)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, e.CacheLen())

	second := sampleRequest()
	second.Path = "/other"
	third := sampleRequest()
	third.Path = "/another"
	e.Extract(second)
	e.Extract(third)
	assert.LessOrEqual(t, e.CacheLen(), 2)
}
