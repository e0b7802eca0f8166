package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/llm"
	"github.com/ashita-ai/kiseki/internal/model"
)

const summarizerSystemPrompt = `You are a specialized AI agent focused on summarization, analysis, and grading tasks. Your capabilities include:

1. **Summarization**: Create concise, accurate summaries of complex information
2. **Grading/Evaluation**: Assess content quality, accuracy, and completeness
3. **Analysis**: Break down complex topics into key components
4. **Critical Review**: Identify strengths, weaknesses, and areas for improvement

When processing information:
- Always maintain objectivity and accuracy
- Provide clear, structured analysis
- Include relevant metrics or scores when appropriate
- Highlight key insights and actionable recommendations
- Be specific and evidence-based in your assessments

Your responses should be professional, thorough, and actionable.`

// SummarizationResult is the summarizer's structured answer.
type SummarizationResult struct {
	Summary      string   `json:"summary"`
	Grade        *float64 `json:"grade,omitempty"`
	KeyPoints    []string `json:"key_points"`
	Confidence   float64  `json:"confidence"`
	AnalysisType string   `json:"analysis_type"`
}

// Summarizer handles summarization, grading, and comparison tasks
// delegated by the orchestrator.
type Summarizer struct {
	client   llm.Client
	recorder *emit.Recorder
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(client llm.Client, recorder *emit.Recorder, logger *slog.Logger) *Summarizer {
	return &Summarizer{client: client, recorder: recorder, logger: logger}
}

// Summarize analyzes content in response to the query, choosing the
// analysis style from the query's wording.
func (s *Summarizer) Summarize(ctx context.Context, content, query string) (SummarizationResult, error) {
	ctx = emit.WithAgent(ctx, model.AgentSummarizer)

	s.recorder.LogStep(ctx, "summarization_start", fmt.Sprintf("Starting summarization for query: %s", headline(query)), nil)

	analysisType := determineAnalysisType(query)
	s.recorder.LogStep(ctx, "analysis_type", fmt.Sprintf("Determined analysis type: %s", analysisType), nil)

	var prompt string
	switch analysisType {
	case "grade":
		prompt = gradingPrompt(content, query)
	case "compare":
		prompt = comparisonPrompt(content, query)
	default:
		prompt = summarizationPrompt(content, query)
	}

	resp, err := invokeLLM(ctx, s.recorder, s.client, []llm.Message{
		{Role: llm.RoleSystem, Content: summarizerSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, map[string]any{"analysis_type": analysisType})
	if err != nil {
		return SummarizationResult{}, fmt.Errorf("agent: summarize: %w", err)
	}

	result := parseSummarizerResponse(resp.Text, analysisType)
	s.recorder.LogStep(ctx, "summarization_complete", fmt.Sprintf("Completed %s analysis", analysisType), nil)

	s.recorder.LogAgentOutput(ctx, "summarizer_response", result.Summary, true, "", map[string]any{
		"analysis_type":    analysisType,
		"grade":            result.Grade,
		"key_points_count": len(result.KeyPoints),
		"confidence":       result.Confidence,
	})
	return result, nil
}

func determineAnalysisType(query string) string {
	queryLower := strings.ToLower(query)
	switch {
	case containsAny(queryLower, []string{"grade", "score", "rate", "evaluate", "assess"}):
		return "grade"
	case containsAny(queryLower, []string{"compare", "contrast", "versus", "vs"}):
		return "compare"
	case containsAny(queryLower, []string{"analyze", "break down", "examine"}):
		return "analyze"
	default:
		return "summary"
	}
}

func summarizationPrompt(content, query string) string {
	return fmt.Sprintf(`Please provide a comprehensive summary of the following content in response to the user's query.

User Query: %s

Content to Summarize:
%s

Please provide:
1. A clear, concise summary (2-3 paragraphs)
2. Key points and insights (bullet points)
3. Any important details or recommendations
4. Your confidence level in the analysis (0-1 scale)

Format your response as:
SUMMARY: [your summary]
KEY POINTS: [bullet points]
RECOMMENDATIONS: [any recommendations]
CONFIDENCE: [0.0-1.0]`, query, content)
}

func gradingPrompt(content, query string) string {
	return fmt.Sprintf(`Please evaluate and grade the following content based on the user's query.

User Query: %s

Content to Evaluate:
%s

Please provide:
1. A numerical grade (0-100 scale)
2. Detailed evaluation criteria
3. Strengths and weaknesses
4. Specific recommendations for improvement
5. Your confidence in the evaluation

Format your response as:
GRADE: [0-100]
CRITERIA: [evaluation criteria used]
STRENGTHS: [what's good]
WEAKNESSES: [what needs improvement]
RECOMMENDATIONS: [specific suggestions]
CONFIDENCE: [0.0-1.0]`, query, content)
}

func comparisonPrompt(content, query string) string {
	return fmt.Sprintf(`Please analyze and compare the following content based on the user's query.

User Query: %s

Content to Compare:
%s

Please provide:
1. A structured comparison
2. Key differences and similarities
3. Pros and cons of each option
4. A recommendation with justification
5. Your confidence in the analysis

Format your response as:
COMPARISON: [structured comparison]
DIFFERENCES: [key differences]
SIMILARITIES: [key similarities]
RECOMMENDATION: [your recommendation]
CONFIDENCE: [0.0-1.0]`, query, content)
}

// parseSummarizerResponse extracts the labeled sections of a model
// reply. Unstructured replies become the summary wholesale.
func parseSummarizerResponse(response, analysisType string) SummarizationResult {
	result := SummarizationResult{
		Confidence:   0.5,
		AnalysisType: analysisType,
		KeyPoints:    []string{},
	}

	section := ""
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			section = "summary"
			result.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "KEY POINTS:"):
			section = "key_points"
		case strings.HasPrefix(line, "GRADE:"):
			section = ""
			if grade, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "GRADE:")), 64); err == nil {
				result.Grade = &grade
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			section = ""
			if confidence, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64); err == nil {
				result.Confidence = confidence
			}
		case section == "key_points" && strings.HasPrefix(line, "-"):
			result.KeyPoints = append(result.KeyPoints, strings.TrimSpace(line[1:]))
		case section == "summary":
			if result.Summary != "" {
				result.Summary += " " + line
			} else {
				result.Summary = line
			}
		}
	}

	if result.Summary == "" {
		result.Summary = response
	}
	return result
}
