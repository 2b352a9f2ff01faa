package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/config"
	"github.com/vigilguard/vigil/pkg/infra/events"
	"github.com/vigilguard/vigil/pkg/infra/prometheus"
	"github.com/vigilguard/vigil/pkg/infra/reputation"
	"github.com/vigilguard/vigil/pkg/infra/webhook"
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/behavior"
	"github.com/vigilguard/vigil/pkg/waf/bot"
	"github.com/vigilguard/vigil/pkg/waf/features"
	"github.com/vigilguard/vigil/pkg/waf/fusion"
	"github.com/vigilguard/vigil/pkg/waf/ml"
	"github.com/vigilguard/vigil/pkg/waf/rules"
	"github.com/vigilguard/vigil/pkg/waf/threat"
)

// Pipeline runs every detector over a request and folds their signals into
// one enforcement decision. Analyze is safe for concurrent use; the only
// mutations happen in the detectors' own recording paths.
type Pipeline struct {
	logger *logrus.Logger
	cfg    config.AnalysisConfig

	features   *features.Extractor
	threat     *threat.Extractor
	rules      *rules.Engine
	predictor  ml.Predictor
	combiner   *ml.Combiner
	botDet     *bot.Detector
	botTracker *bot.Tracker
	behavior   *behavior.Analyzer
	reputation reputation.Tracker
	policies   types.PolicyProvider

	hub        *events.Hub
	webhooks   *webhook.Dispatcher
	alertScore float64
}

// Options carry the optional collaborators. Nil fields disable the
// corresponding side effect.
type Options struct {
	Reputation reputation.Tracker
	Hub        *events.Hub
	Webhooks   *webhook.Dispatcher
	AlertScore float64
}

func NewPipeline(
	logger *logrus.Logger,
	cfg config.AnalysisConfig,
	ruleEngine *rules.Engine,
	predictor ml.Predictor,
	behaviorAnalyzer *behavior.Analyzer,
	policies types.PolicyProvider,
	opts Options,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		cfg:        cfg,
		features:   features.NewExtractor(cfg.FeatureCacheSize),
		threat:     threat.NewExtractor(cfg.HistoryDepth),
		rules:      ruleEngine,
		predictor:  predictor,
		combiner:   ml.NewCombiner(0.6, 0.4),
		botDet:     bot.NewDetector(),
		botTracker: bot.NewTracker(),
		behavior:   behaviorAnalyzer,
		reputation: opts.Reputation,
		policies:   policies,
		hub:        opts.Hub,
		webhooks:   opts.Webhooks,
		alertScore: opts.AlertScore,
	}
}

// BotTracker exposes the sample window store for sweeping.
func (p *Pipeline) BotTracker() *bot.Tracker { return p.botTracker }

// Behavior exposes the behavioral analyzer for the login events API.
func (p *Pipeline) Behavior() *behavior.Analyzer { return p.behavior }

// Analyze scores one request. The verdict is produced within the configured
// timeout; past it the pipeline fails open or closed per configuration and
// never leaves the caller hanging.
func (p *Pipeline) Analyze(ctx context.Context, req *types.RequestContext) *types.ScoringResult {
	start := time.Now()
	if req.Timestamp.IsZero() {
		req.Timestamp = start
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result *types.ScoringResult
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.WithField("panic", r).Error("Analysis pipeline panicked")
				done <- outcome{nil}
			}
		}()
		done <- outcome{p.evaluate(ctx, req)}
	}()

	var result *types.ScoringResult
	select {
	case out := <-done:
		result = out.result
		if result == nil {
			result = p.failureVerdict(req, "analysis error")
		}
	case <-ctx.Done():
		result = p.failureVerdict(req, "analysis timeout")
	}

	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	p.emit(req, result)
	return result
}

// evaluate runs the detectors in dependency order and fuses their output.
func (p *Pipeline) evaluate(ctx context.Context, req *types.RequestContext) *types.ScoringResult {
	var repScore float64
	var fp reputation.Fingerprint
	if p.reputation != nil {
		fp = p.reputation.MakeFingerprint(req)
		score, err := p.reputation.Score(ctx, fp)
		if err != nil {
			p.logger.WithError(err).Warn("Reputation lookup failed, scoring without it")
		} else {
			repScore = score
		}
	}

	fv := p.features.Extract(req)
	fv.IPReputation = repScore
	tv := p.threat.Extract(req, fv)

	matches, patternScore := p.rules.Evaluate(req)
	pred := p.predictor.Predict(fv)

	botRes := p.botDet.Analyze(req)
	samples := p.botTracker.Samples(req.ClientIP)
	scrape := bot.DetectScrapingPattern(samples)
	stuffBot := bot.DetectCredentialStuffingBot(samples)

	identity := loginIdentity(req)
	behavioral, geo, velocity, stuffing := p.behavior.FusionSignals(identity)

	statAnomaly := math.Min(100, (tv.ZScore*0.1+tv.MahalanobisDistance*0.05+tv.SessionAnomaly)*100)
	botSignal := math.Max(botRes.Score, scrape.Score)

	assessment := fusion.Score(fusion.Signals{
		Pattern:    patternScore,
		Anomaly:    math.Max(pred.AnomalyScore, statAnomaly),
		Reputation: repScore,
		Bot:        botSignal,
		Behavioral: behavioral,
		Geo:        geo,
		Velocity:   math.Max(velocity, math.Min(100, tv.RequestVelocity*5)),
		Stuffing:   math.Max(stuffing, stuffBot.Score),
	})

	policy := p.policies.PolicyFor(req.TenantID)

	// the lightweight engine skips fusion and blends only the signature
	// and model scores
	if policy.SecurityEngine == "combined" {
		combined := p.combiner.Combine(patternScore, pred)
		assessment = fusion.Assessment{
			Score:          combined,
			RiskLevel:      riskFromScore(combined),
			Recommendation: types.ActionAllow,
			Confidence:     pred.Confidence * 100,
			TopFactors:     pred.TopFactors,
		}
	}

	action := p.decide(assessment, policy)

	reasoning := make([]string, 0, len(matches)+len(pred.Reasoning)+2)
	for _, m := range matches {
		reasoning = append(reasoning, fmt.Sprintf("rule %s (%s) matched", m.RuleID, m.Category))
	}
	reasoning = append(reasoning, pred.Reasoning...)
	if botRes.IsBot {
		reasoning = append(reasoning, fmt.Sprintf("bot score %.0f (%s)", botRes.Score, botRes.BotType))
	}
	if scrape.Flagged {
		reasoning = append(reasoning, "scraping pattern detected")
	}
	if stuffBot.Flagged {
		reasoning = append(reasoning, "credential stuffing traffic detected")
	}
	if policy.EnforcementMode == types.ModeMonitor && assessment.Recommendation != types.ActionAllow {
		reasoning = append(reasoning, fmt.Sprintf("monitor mode, %s suppressed", assessment.Recommendation))
	}

	p.record(ctx, req, fv, fp, action)

	return &types.ScoringResult{
		PatternScore:  patternScore,
		MLScore:       pred.AnomalyScore,
		CombinedScore: assessment.Score,
		Action:        action,
		RiskLevel:     assessment.RiskLevel,
		Reasoning:     reasoning,
		TopFactors:    assessment.TopFactors,
		Matches:       matches,
	}
}

// decide maps the fused assessment through the tenant policy. The stricter
// of the fusion recommendation and the threshold verdict wins; monitor mode
// reports but never enforces.
func (p *Pipeline) decide(assessment fusion.Assessment, policy types.Policy) types.Action {
	byThreshold := types.ActionAllow
	switch {
	case policy.BlockThreshold > 0 && assessment.Score >= policy.BlockThreshold:
		byThreshold = types.ActionBlock
	case policy.ChallengeThreshold > 0 && assessment.Score >= policy.ChallengeThreshold:
		byThreshold = types.ActionChallenge
	}

	action := stricter(assessment.Recommendation, byThreshold)
	if policy.EnforcementMode == types.ModeMonitor {
		return types.ActionAllow
	}
	return action
}

func riskFromScore(score float64) types.RiskLevel {
	switch {
	case score >= 80:
		return types.RiskCritical
	case score >= 65:
		return types.RiskHigh
	case score >= 45:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func stricter(a, b types.Action) types.Action {
	rank := func(a types.Action) int {
		switch a {
		case types.ActionBlock:
			return 2
		case types.ActionChallenge:
			return 1
		default:
			return 0
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// record feeds the request back into the stateful detectors after scoring so
// extraction stays read-only.
func (p *Pipeline) record(ctx context.Context, req *types.RequestContext, fv features.Vector, fp reputation.Fingerprint, action types.Action) {
	p.threat.Record(req, fv)
	p.botTracker.Record(req.ClientIP, bot.SampleFromRequest(req))

	if p.reputation == nil {
		return
	}
	if err := p.reputation.RecordRequest(ctx, fp, reputation.DefaultTTL); err != nil {
		p.logger.WithError(err).Debug("Failed to record reputation sighting")
	}
	if action != types.ActionAllow {
		if err := p.reputation.RecordMalicious(ctx, fp, reputation.DefaultTTL); err != nil {
			p.logger.WithError(err).Debug("Failed to record malicious sighting")
		}
	}
}

// failureVerdict is returned when the pipeline cannot produce a score.
func (p *Pipeline) failureVerdict(req *types.RequestContext, reason string) *types.ScoringResult {
	outcome := "fail_closed"
	action := types.ActionBlock
	risk := types.RiskHigh
	if p.cfg.FailOpen {
		outcome = "fail_open"
		action = types.ActionAllow
		risk = types.RiskLow
	}
	prometheus.AnalysisErrors.WithLabelValues(req.TenantID, outcome).Inc()
	p.logger.WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"client_ip": req.ClientIP,
		"outcome":   outcome,
	}).Error("Analysis did not complete: " + reason)

	return &types.ScoringResult{
		Action:    action,
		RiskLevel: risk,
		Reasoning: []string{reason, outcome},
	}
}

func (p *Pipeline) emit(req *types.RequestContext, result *types.ScoringResult) {
	prometheus.DecisionTotal.WithLabelValues(req.TenantID, string(result.Action), string(result.RiskLevel)).Inc()
	if prometheus.Config.EnableLatency {
		prometheus.AnalysisLatency.WithLabelValues(req.TenantID).Observe(result.ProcessingTimeMs)
	}

	requestID := req.Header(common.RequestIDHeader)

	if p.hub != nil {
		p.hub.Publish(events.DecisionEvent{
			RequestID: requestID,
			TenantID:  req.TenantID,
			ClientIP:  req.ClientIP,
			Method:    req.Method,
			Path:      req.Path,
			Score:     result.CombinedScore,
			RiskLevel: result.RiskLevel,
			Action:    result.Action,
			Timestamp: time.Now(),
		})
	}

	if p.webhooks != nil && p.alertScore > 0 && result.CombinedScore >= p.alertScore {
		matchIDs := make([]string, 0, len(result.Matches))
		for _, m := range result.Matches {
			matchIDs = append(matchIDs, m.RuleID)
		}
		p.webhooks.Dispatch(webhook.Alert{
			RequestID: requestID,
			TenantID:  req.TenantID,
			ClientIP:  req.ClientIP,
			Path:      req.Path,
			Score:     result.CombinedScore,
			RiskLevel: result.RiskLevel,
			Action:    result.Action,
			Matches:   matchIDs,
			Timestamp: time.Now(),
		})
	}
}

// loginIdentity resolves the behavioral identity a request acts on. The
// explicit user header wins, otherwise the client IP stands in.
func loginIdentity(req *types.RequestContext) string {
	userHeaders := []string{"X-User-ID", "X-User-Id", "X-UserID", "User-ID"}
	for _, h := range userHeaders {
		if v := req.Header(h); v != "" {
			return v
		}
	}
	return req.ClientIP
}
