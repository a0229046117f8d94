package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinTextLength = 50
	textTooShortMessage  = "text too short to analyze"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Generator sends one verification prompt to the LLM backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Finding is the scan result for one risk definition.
type Finding struct {
	RiskName   string `json:"risk_name"`
	Found      bool   `json:"found"`
	ClauseText string `json:"clause_text"`
	Analysis   string `json:"analysis"`
	Error      string `json:"error,omitempty"`
}

// llmVerdict is the raw shape the model is asked to return.
type llmVerdict struct {
	Found      *bool  `json:"found"`
	RiskName   string `json:"risk_name"`
	ClauseText string `json:"clause_text"`
	Analysis   string `json:"analysis"`
}

type Scanner struct {
	gen         Generator
	minTextLen  int
	concurrency int
	log         *zap.Logger
}

// NewScanner builds a scanner. concurrency bounds the number of in-flight
// LLM calls per scan; values below one mean sequential.
func NewScanner(gen Generator, minTextLen, concurrency int, log *zap.Logger) *Scanner {
	if minTextLen <= 0 {
		minTextLen = DefaultMinTextLength
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{gen: gen, minTextLen: minTextLen, concurrency: concurrency, log: log}
}

// Scan returns one finding per definition, in definition order. Per-definition
// failures are recorded on the finding and never abort the scan.
func (s *Scanner) Scan(ctx context.Context, text string, defs []Definition) []Finding {
	findings := make([]Finding, len(defs))

	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.minTextLen {
		for i, def := range defs {
			findings[i] = Finding{RiskName: def.Name, Error: textTooShortMessage}
		}
		return findings
	}

	lowered := strings.ToLower(text)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			findings[i] = s.scanOne(gctx, text, lowered, def)
			return nil
		})
	}
	_ = g.Wait()

	return findings
}

func (s *Scanner) scanOne(ctx context.Context, text, lowered string, def Definition) (finding Finding) {
	finding = Finding{RiskName: def.Name}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("risk verification panicked", zap.String("risk", def.Name), zap.Any("panic", r))
			finding = Finding{RiskName: def.Name, Error: fmt.Sprintf("unexpected failure: %v", r)}
		}
	}()

	if !containsAny(lowered, ParseKeywords(def.RawKeywords)) {
		s.log.Debug("risk skipped, no keyword match", zap.String("risk", def.Name))
		return finding
	}

	s.log.Info("verifying risk with llm", zap.String("risk", def.Name))
	reply, err := s.gen.Generate(ctx, BuildPrompt(def, text))
	if err != nil {
		s.log.Warn("risk verification failed", zap.String("risk", def.Name), zap.Error(err))
		finding.Error = err.Error()
		return finding
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		s.log.Warn("unparseable risk verdict", zap.String("risk", def.Name), zap.String("reply", reply))
		finding.Error = err.Error()
		return finding
	}

	clause := strings.TrimSpace(verdict.ClauseText)
	if !*verdict.Found || clause == "" {
		if *verdict.Found {
			s.log.Info("discarding finding without clause", zap.String("risk", def.Name))
		}
		return finding
	}

	finding.Found = true
	finding.ClauseText = clause
	finding.Analysis = strings.TrimSpace(verdict.Analysis)
	return finding
}

// KeywordCandidates returns the definitions whose keywords occur in text,
// i.e. the ones a scan would send to the LLM.
func KeywordCandidates(text string, defs []Definition) []Definition {
	lowered := strings.ToLower(text)
	var out []Definition
	for _, def := range defs {
		if containsAny(lowered, ParseKeywords(def.RawKeywords)) {
			out = append(out, def)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// parseVerdict pulls the outermost {...} span out of a model reply and
// requires it to decode into an object carrying "found".
func parseVerdict(reply string) (*llmVerdict, error) {
	span := jsonObjectPattern.FindString(reply)
	if span == "" {
		return nil, ErrParse
	}
	var v llmVerdict
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return nil, ErrParse
	}
	if v.Found == nil {
		return nil, ErrParse
	}
	return &v, nil
}

// BuildPrompt asks the model to confirm one risk in text and answer with a
// fixed JSON shape.
func BuildPrompt(def Definition, text string) string {
	return fmt.Sprintf(`You are a senior loan analysis expert. Your task is to find one specific risk in the provided loan agreement.

**The Risk to Find:** %[1]s
**Definition of this Risk:** %[2]s
**Why it's Harmful:** %[3]s
**Keywords to look for:** %[4]s

**The Loan Agreement:**
---
%[5]s
---

**Your Task:**
1. Read the entire Loan Agreement.
2. Determine if a clause matching the **Risk to Find** exists.
3. If it **DOES NOT** exist, respond with: {"found": false, "risk_name": "%[1]s"}
4. If it **DOES** exist, respond with a JSON object containing:
    * "found": true
    * "risk_name": "%[1]s"
    * "clause_text": "[The EXACT quote from the agreement, word-for-word]"
    * "analysis": "[A brief, simple explanation of why this specific clause is the risk, using the provided definition]"

**Respond ONLY with the JSON object and nothing else.**
`, def.Name, orNA(def.Description), orNA(def.Harm), orNA(def.RawKeywords), text)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
