package bot

import (
	"math"
	"strings"

	"github.com/avct/uasurfer"
	"github.com/vigilguard/vigil/pkg/types"
)

const (
	botThreshold      = 60
	oversizedBodySize = 1 << 20
)

// Result is the outcome of the stateless heuristics applied to one request.
type Result struct {
	Score      float64  `json:"score"`
	IsBot      bool     `json:"is_bot"`
	BotType    string   `json:"bot_type,omitempty"`
	Indicators []string `json:"indicators,omitempty"`
}

// Detector scores requests for automation markers. Analyze is read only and
// safe for concurrent use.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Analyze scores one request. Axes are capped independently so a single
// noisy signal cannot dominate: user agent 50, path 40, headers 40, plus
// two fixed bonuses, with the total capped at 100.
func (d *Detector) Analyze(req *types.RequestContext) Result {
	var res Result

	uaScore, uaType, uaIndicators := d.userAgentScore(req.UserAgent())
	res.Score += uaScore
	res.BotType = uaType
	res.Indicators = append(res.Indicators, uaIndicators...)

	pathScore, pathIndicators := d.pathScore(req.Path)
	res.Score += pathScore
	res.Indicators = append(res.Indicators, pathIndicators...)

	headerScore, headerIndicators := d.headerScore(req)
	res.Score += headerScore
	res.Indicators = append(res.Indicators, headerIndicators...)

	if methodAnomaly(req) {
		res.Score += 15
		res.Indicators = append(res.Indicators, "method_anomaly")
	}
	if len(req.Body) > oversizedBodySize {
		res.Score += 10
		res.Indicators = append(res.Indicators, "oversized_body")
	}

	res.Score = math.Min(res.Score, 100)
	res.IsBot = res.Score >= botThreshold
	return res
}

func (d *Detector) userAgentScore(ua string) (float64, string, []string) {
	if ua == "" {
		return 25, "", []string{"missing_user_agent"}
	}
	lower := strings.ToLower(ua)

	if tool, ok := containsAny(lower, attackTools); ok {
		return 50, "attack_tool", []string{"attack_tool:" + tool}
	}
	if client, ok := containsAny(lower, genericClients); ok {
		return 30, "scripted_client", []string{"scripted_client:" + client}
	}

	parsed := uasurfer.Parse(ua)
	if parsed.Browser.Name == uasurfer.BrowserBot || parsed.OS.Name == uasurfer.OSBot {
		return 30, "crawler", []string{"crawler_user_agent"}
	}
	if parsed.DeviceType == uasurfer.DeviceUnknown && parsed.Browser.Name == uasurfer.BrowserUnknown {
		return 15, "", []string{"unrecognized_user_agent"}
	}
	return 0, "", nil
}

func (d *Detector) pathScore(path string) (float64, []string) {
	var score float64
	var indicators []string
	lower := strings.ToLower(path)

	if probe, ok := containsAny(lower, probePaths); ok {
		score += 20
		indicators = append(indicators, "probe_path:"+probe)
	}
	for _, ext := range probeExtensions {
		if strings.HasSuffix(lower, ext) {
			score += 10
			indicators = append(indicators, "script_extension_probe")
			break
		}
	}
	return math.Min(score, 40), indicators
}

func (d *Detector) headerScore(req *types.RequestContext) (float64, []string) {
	var score float64
	var indicators []string

	if req.Header("Accept") == "" {
		score += 15
		indicators = append(indicators, "missing_accept")
	}
	if req.Header("Accept-Language") == "" {
		score += 10
		indicators = append(indicators, "missing_accept_language")
	}
	if req.Header("Accept-Encoding") == "" {
		score += 10
		indicators = append(indicators, "missing_accept_encoding")
	}
	if len(req.Headers) < 4 {
		score += 10
		indicators = append(indicators, "sparse_headers")
	}
	if req.Header("Referer") == "" && req.Header("Cookie") == "" {
		score += 5
		indicators = append(indicators, "no_session_context")
	}
	return math.Min(score, 40), indicators
}

func methodAnomaly(req *types.RequestContext) bool {
	switch req.Method {
	case "TRACE", "TRACK", "CONNECT":
		return true
	case "GET", "HEAD":
		return len(req.Body) > 0
	}
	return false
}
