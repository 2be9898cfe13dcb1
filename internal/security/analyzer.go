// internal/security/analyzer.go
package security

import (
	"log"
	"strings"

	"github.com/teamsquare/guardian/internal/protocol"
)

// Heuristic stand-ins for the external ML classifiers, used when the
// real classifier server is unreachable. Labels and confidence
// constants mirror the production models' output space.

// Model names accepted in analyze requests
const (
	ModelVulnerability = "vulnerability_classifier"
	ModelNetwork       = "network_analyzer"
	ModelIntent        = "intent_classifier"
)

// SignalResult is one matcher's output
type SignalResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the aggregated result of a security scan
type Analysis struct {
	Vulnerability *SignalResult
	Network       *SignalResult
	Intent        *SignalResult
	Score         float64
	Verdict       protocol.Verdict
}

// ClassifyVulnerability flags injection and traversal markers.
// First matching rule wins.
func ClassifyVulnerability(text string) SignalResult {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "<script>") || strings.Contains(lower, "alert(") || strings.Contains(lower, "onerror="):
		return SignalResult{Label: "XSS", Confidence: 0.85}
	case (strings.Contains(lower, "select") && strings.Contains(lower, "from")) || strings.Contains(lower, "union"):
		return SignalResult{Label: "SQL_INJECTION", Confidence: 0.78}
	case strings.Contains(text, "../") || strings.Contains(lower, "..%2f"):
		return SignalResult{Label: "PATH_TRAVERSAL", Confidence: 0.82}
	case strings.Contains(lower, "<?php") || strings.Contains(lower, "system("):
		return SignalResult{Label: "CODE_INJECTION", Confidence: 0.80}
	default:
		return SignalResult{Label: "SAFE", Confidence: 0.90}
	}
}

// AnalyzeTraffic flags attack patterns in traffic descriptions
func AnalyzeTraffic(text string) SignalResult {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "ddos") || strings.Contains(lower, "syn flood") || strings.Contains(lower, "high volume"):
		return SignalResult{Label: "DDOS", Confidence: 0.88}
	case strings.Contains(lower, "port scan") || strings.Contains(lower, "scanning") || strings.Contains(lower, "nmap"):
		return SignalResult{Label: "PORT_SCAN", Confidence: 0.85}
	case strings.Contains(lower, "brute force") || strings.Contains(lower, "failed authentication") || strings.Contains(lower, "failed login"):
		return SignalResult{Label: "BRUTE_FORCE", Confidence: 0.82}
	case strings.Contains(lower, "malicious") || strings.Contains(lower, "exploit"):
		return SignalResult{Label: "DDOS", Confidence: 0.75}
	default:
		return SignalResult{Label: "NORMAL", Confidence: 0.91}
	}
}

var maliciousKeywords = []string{
	"hack", "exploit", "attack", "malware", "steal", "bypass",
	"inject", "payload", "backdoor", "ransomware", "phishing", "crack",
}

// ClassifyIntent counts malicious-keyword hits: two or more is
// Malicious, exactly one is Suspicious, none is Legitimate.
func ClassifyIntent(text string) SignalResult {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range maliciousKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		return SignalResult{Label: "Malicious", Confidence: 0.80}
	case hits == 1:
		return SignalResult{Label: "Suspicious", Confidence: 0.60}
	default:
		return SignalResult{Label: "Legitimate", Confidence: 0.90}
	}
}

// WeightedScore combines the three matchers into one number.
// Weights: vulnerability x3, malicious intent x2.5, network x2,
// suspicious intent x1. Benign labels contribute nothing.
func WeightedScore(vuln, network, intent *SignalResult) float64 {
	score := 0.0
	if vuln != nil && vuln.Label != "SAFE" {
		score += vuln.Confidence * 3
	}
	if network != nil && network.Label != "NORMAL" {
		score += network.Confidence * 2
	}
	if intent != nil {
		switch intent.Label {
		case "Malicious":
			score += intent.Confidence * 2.5
		case "Suspicious":
			score += intent.Confidence * 1
		}
	}
	return score
}

// VerdictForScore maps a weighted score to a verdict.
// Thresholds are inclusive: 2.5 is critical, 1.5 is high, 0.5 is medium.
func VerdictForScore(score float64) protocol.Verdict {
	switch {
	case score >= 2.5:
		return protocol.VerdictCritical
	case score >= 1.5:
		return protocol.VerdictHigh
	case score >= 0.5:
		return protocol.VerdictMedium
	case score > 0:
		return protocol.VerdictLow
	default:
		return protocol.VerdictSafe
	}
}

// Analyzer runs the heuristic matchers and applies their side effects
// (alerts, system block) to the store.
type Analyzer struct {
	store *Store
}

// NewAnalyzer creates an analyzer bound to a store
func NewAnalyzer(store *Store) *Analyzer {
	return &Analyzer{store: store}
}

// Analyze runs the requested matchers over text (all three when models
// is empty), records alerts for detections, and blocks the system on a
// critical verdict.
func (a *Analyzer) Analyze(text, sessionID string, models []string) Analysis {
	wanted := func(name string) bool {
		if len(models) == 0 {
			return true
		}
		for _, m := range models {
			if m == name {
				return true
			}
		}
		return false
	}

	var result Analysis

	if wanted(ModelVulnerability) {
		r := ClassifyVulnerability(text)
		result.Vulnerability = &r
		if r.Label != "SAFE" {
			severity := protocol.SeverityMedium
			if r.Confidence > 0.8 {
				severity = protocol.SeverityHigh
			}
			a.store.AddAlert(protocol.CategoryVulnerability, severity, "vulnerability detected: "+r.Label, sessionID)
		}
	}

	if wanted(ModelNetwork) {
		r := AnalyzeTraffic(text)
		result.Network = &r
		if r.Label != "NORMAL" {
			severity := protocol.SeverityHigh
			if r.Label == "DDOS" {
				severity = protocol.SeverityCritical
			}
			a.store.AddAlert(protocol.CategoryNetwork, severity, "suspicious network activity: "+r.Label, sessionID)
		}
	}

	if wanted(ModelIntent) {
		r := ClassifyIntent(text)
		result.Intent = &r
		if r.Label == "Malicious" {
			severity := protocol.SeverityMedium
			if r.Confidence > 0.5 {
				severity = protocol.SeverityHigh
			}
			a.store.AddAlert(protocol.CategoryIntent, severity, "malicious intent detected", sessionID)
		}
	}

	result.Score = WeightedScore(result.Vulnerability, result.Network, result.Intent)
	result.Verdict = VerdictForScore(result.Score)

	a.store.MarkScan()
	if sessionID != "" {
		a.store.TouchActivity(sessionID, result.Score, result.Verdict == protocol.VerdictCritical)
	}

	if result.Verdict == protocol.VerdictCritical {
		log.Printf("Critical threat detected (score %.2f), blocking system", result.Score)
		a.store.Block("critical threat detected", protocol.SeverityCritical, 0)
	}

	return result
}
