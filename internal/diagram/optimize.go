package diagram

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ashita-ai/kiseki/internal/model"
)

// Rule thresholds for optimization findings.
const (
	longEventMs         = 5000
	errorRateThreshold  = 0.1
	toolCallThreshold   = 10
	delegationThreshold = 3
)

// findOptimizations applies the four rules in fixed order. Each rule is
// independent and contributes at most one finding.
func findOptimizations(events []model.Event) []model.OptimizationPoint {
	findings := []model.OptimizationPoint{}

	longEvents := 0
	errorEvents := 0
	toolEvents := 0
	delegationEvents := 0
	for _, event := range events {
		if event.DurationMs != nil && *event.DurationMs > longEventMs {
			longEvents++
		}
		if success, ok := event.Success(); ok && !success {
			errorEvents++
		}
		switch event.Type {
		case model.EventToolCall:
			toolEvents++
		case model.EventDelegation:
			delegationEvents++
		}
	}

	if longEvents > 0 {
		findings = append(findings, model.OptimizationPoint{
			ID:             uuid.NewString(),
			Category:       "performance",
			Severity:       "medium",
			Title:          "Long-running Operations Detected",
			Description:    fmt.Sprintf("Found %d events taking longer than 5 seconds", longEvents),
			Suggestion:     "Consider optimizing these operations or adding progress indicators",
			ImpactEstimate: "Improved user experience and system responsiveness",
		})
	}

	// Error rate is measured against all events, not just the flagged
	// kinds, so runs with many step logs dilute the rate.
	if errorEvents > 0 && float64(errorEvents)/float64(len(events)) > errorRateThreshold {
		findings = append(findings, model.OptimizationPoint{
			ID:             uuid.NewString(),
			Category:       "reliability",
			Severity:       "high",
			Title:          "High Error Rate",
			Description:    fmt.Sprintf("Error rate is %.1f%%", float64(errorEvents)/float64(len(events))*100),
			Suggestion:     "Investigate and fix error sources, add better error handling",
			ImpactEstimate: "Improved system reliability and user satisfaction",
		})
	}

	if toolEvents > toolCallThreshold {
		findings = append(findings, model.OptimizationPoint{
			ID:             uuid.NewString(),
			Category:       "efficiency",
			Severity:       "low",
			Title:          "High Tool Usage",
			Description:    fmt.Sprintf("System made %d tool calls", toolEvents),
			Suggestion:     "Consider caching or batching tool calls to reduce overhead",
			ImpactEstimate: "Reduced latency and resource usage",
		})
	}

	if delegationEvents > delegationThreshold {
		findings = append(findings, model.OptimizationPoint{
			ID:             uuid.NewString(),
			Category:       "architecture",
			Severity:       "low",
			Title:          "Complex Delegation Chain",
			Description:    fmt.Sprintf("System made %d delegations", delegationEvents),
			Suggestion:     "Consider simplifying the agent architecture or optimizing delegation logic",
			ImpactEstimate: "Simplified maintenance and improved performance",
		})
	}

	return findings
}
