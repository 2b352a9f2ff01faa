package rules

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"

	"github.com/vigilguard/vigil/pkg/types"
)

const maxPatternScore = 100

// Engine evaluates an ordered signature catalog against request fields.
// Patterns are compiled and validated once at load time; Go's regexp is RE2,
// so evaluation cannot backtrack catastrophically on attacker input. A match
// budget still bounds total work per request on pathological catalogs.
type Engine struct {
	logger      *logrus.Logger
	rules       []compiledRule
	matchBudget int
	parserPool  fastjson.ParserPool
}

type compiledRule struct {
	rule types.Rule
	re   *regexp.Regexp
}

func NewEngine(logger *logrus.Logger, catalog []types.Rule, matchBudget int) (*Engine, error) {
	if matchBudget <= 0 {
		matchBudget = 500
	}
	e := &Engine{logger: logger, matchBudget: matchBudget}
	for _, r := range catalog {
		if !r.Enabled {
			continue
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		e.rules = append(e.rules, compiledRule{rule: r, re: re})
	}
	return e, nil
}

// Evaluate runs every enabled rule against its target field and returns the
// matches in rule order plus the aggregated pattern score, capped at 100.
func (e *Engine) Evaluate(req *types.RequestContext) ([]types.RuleMatch, float64) {
	var matches []types.RuleMatch
	score := 0.0
	checks := 0

	bodyTexts := e.bodyTexts(req)

	for _, cr := range e.rules {
		if checks >= e.matchBudget {
			e.logger.WithFields(logrus.Fields{
				"tenant_id": req.TenantID,
				"budget":    e.matchBudget,
			}).Warn("rule match budget exceeded, catalog truncated for this request")
			break
		}

		matched := false
		for _, target := range e.targets(cr.rule.Field, req, bodyTexts) {
			checks++
			if cr.re.MatchString(target) {
				matched = true
				break
			}
		}

		if matched {
			matches = append(matches, types.RuleMatch{
				RuleID:   cr.rule.ID,
				Category: cr.rule.Category,
				Severity: cr.rule.Severity,
				Score:    cr.rule.Score,
			})
			score += cr.rule.Score
		}
	}

	return matches, math.Min(score, maxPatternScore)
}

// Len reports the number of enabled compiled rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

func (e *Engine) targets(field types.RuleField, req *types.RequestContext, bodyTexts []string) []string {
	switch field {
	case types.FieldPath:
		return []string{req.Path}
	case types.FieldQuery:
		return []string{req.Query.Encode(), decodedQuery(req)}
	case types.FieldHeaders:
		targets := make([]string, 0, len(req.Headers))
		for key, values := range req.Headers {
			if strings.EqualFold(key, "Host") {
				continue
			}
			for _, v := range values {
				targets = append(targets, key+": "+v)
			}
		}
		return targets
	case types.FieldBody:
		return bodyTexts
	case types.FieldResponse:
		// Response inspection runs on the response path, not here.
		return nil
	default: // FieldRequest
		targets := []string{req.Path, decodedQuery(req)}
		targets = append(targets, bodyTexts...)
		for key, values := range req.Headers {
			if strings.EqualFold(key, "Host") {
				continue
			}
			for _, v := range values {
				targets = append(targets, key+": "+v)
			}
		}
		return targets
	}
}

// bodyTexts returns the raw body plus, when the body is JSON, every string
// leaf so rules see decoded values rather than escaped JSON.
func (e *Engine) bodyTexts(req *types.RequestContext) []string {
	if len(req.Body) == 0 {
		return nil
	}
	texts := []string{string(req.Body)}

	p := e.parserPool.Get()
	defer e.parserPool.Put(p)
	v, err := p.ParseBytes(req.Body)
	if err != nil {
		return texts
	}
	collectStrings(v, &texts)
	return texts
}

func collectStrings(v *fastjson.Value, out *[]string) {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return
		}
		obj.Visit(func(key []byte, value *fastjson.Value) {
			*out = append(*out, string(key))
			collectStrings(value, out)
		})
	case fastjson.TypeArray:
		items, err := v.Array()
		if err != nil {
			return
		}
		for _, item := range items {
			collectStrings(item, out)
		}
	case fastjson.TypeString:
		b, err := v.StringBytes()
		if err != nil {
			return
		}
		*out = append(*out, string(b))
	}
}

func decodedQuery(req *types.RequestContext) string {
	var sb strings.Builder
	for key, values := range req.Query {
		for _, v := range values {
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(v)
			sb.WriteString("&")
		}
	}
	return sb.String()
}
