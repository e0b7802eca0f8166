package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashita-ai/kiseki/internal/emit"
	"github.com/ashita-ai/kiseki/internal/llm"
	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/search"
)

const orchestratorSystemPrompt = `You are an intelligent orchestrator agent that coordinates multi-agent workflows. Your responsibilities include:

1. **Query Analysis**: Understand user queries and determine the best approach
2. **Knowledge Integration**: Search and utilize knowledge bases effectively
3. **Smart Delegation**: Decide when to delegate to specialized agents
4. **Response Synthesis**: Combine information from multiple sources
5. **Quality Assurance**: Ensure responses are accurate and helpful

When processing queries:
- Always search the knowledge base first for relevant context
- Delegate to specialized agents when analysis, summarization, or grading is needed
- Provide clear, comprehensive responses
- Maintain high quality and accuracy standards

Your goal is to provide the best possible response by intelligently coordinating available resources and agents.`

// Keyword triggers for delegating to the summarizer.
var delegationIndicators = []string{
	"summarize", "summary", "grade", "evaluate", "assess", "review",
	"analyze", "compare", "rate", "score", "judge", "critique",
}

// Keyword triggers for consulting the knowledge base at all.
var kbSearchKeywords = []string{"how", "what", "where", "when", "why", "setup", "configure"}

// Phrases that ask for analysis of retrieved context specifically.
var analysisPhrases = []string{"what does this mean", "explain this", "analyze this", "what can you tell me about"}

// OrchestrationResult is the orchestrator's answer to one query.
type OrchestrationResult struct {
	Response    string  `json:"response"`
	UsedKB      bool    `json:"used_kb"`
	DelegatedTo string  `json:"delegated_to,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Orchestrator coordinates a query end to end: plan, search, delegate
// or answer directly.
type Orchestrator struct {
	client       llm.Client
	recorder     *emit.Recorder
	searcher     search.Searcher
	summarizer   *Summarizer
	systemPrompt string
	logger       *slog.Logger
}

// NewOrchestrator creates an orchestrator. systemPrompt overrides the
// built-in prompt when non-empty.
func NewOrchestrator(client llm.Client, recorder *emit.Recorder, searcher search.Searcher, summarizer *Summarizer, systemPrompt string, logger *slog.Logger) *Orchestrator {
	if systemPrompt == "" {
		systemPrompt = orchestratorSystemPrompt
	}
	return &Orchestrator{
		client:       client,
		recorder:     recorder,
		searcher:     searcher,
		summarizer:   summarizer,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// ProcessQuery answers one user query, delegating to the summarizer
// when the query calls for analysis work.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string) (OrchestrationResult, error) {
	ctx = emit.WithAgent(ctx, model.AgentOrchestrator)

	o.recorder.LogStep(ctx, "query_received", fmt.Sprintf("Received query: %s", headline(query)), nil)
	o.recorder.LogStep(ctx, "planning", "Planning approach to handle query", nil)

	planPrompt := fmt.Sprintf(`You are an orchestrator agent. Analyze this user query and determine the best approach:

Query: %s

Consider:
1. Does this query need knowledge base search?
2. Does this query require analysis, summarization, or grading?
3. What tools or agents might be needed?

Respond with a brief plan (1-2 sentences).`, query)

	plan, err := invokeLLM(ctx, o.recorder, o.client, []llm.Message{{Role: llm.RoleUser, Content: planPrompt}}, nil)
	if err != nil {
		return OrchestrationResult{}, fmt.Errorf("agent: plan query: %w", err)
	}
	o.recorder.LogStep(ctx, "plan_created", fmt.Sprintf("Created plan: %s", plan.Text), nil)

	kbContext, usedKB := o.searchKB(ctx, query)

	if delegate, reason := shouldDelegate(query, kbContext); delegate {
		return o.delegate(ctx, query, kbContext, usedKB, reason)
	}

	o.recorder.LogStep(ctx, "direct_handling", "Handling query directly without delegation", nil)

	kb := kbContext
	if kb == "" {
		kb = "No additional context available."
	}
	responsePrompt := fmt.Sprintf(`User Query: %s

Knowledge Base Context:
%s

Provide a clear, helpful response based on the available information.`, query, kb)

	resp, err := invokeLLM(ctx, o.recorder, o.client, []llm.Message{
		{Role: llm.RoleSystem, Content: o.systemPrompt},
		{Role: llm.RoleUser, Content: responsePrompt},
	}, nil)
	if err != nil {
		return OrchestrationResult{}, fmt.Errorf("agent: generate response: %w", err)
	}
	o.recorder.LogStep(ctx, "response_generated", "Generated final response", nil)

	o.recorder.LogAgentOutput(ctx, "orchestrator_response", resp.Text, true, "", map[string]any{
		"delegated_to": nil,
		"used_kb":      usedKB,
		"confidence":   0.9,
	})
	return OrchestrationResult{Response: resp.Text, UsedKB: usedKB, Confidence: 0.9}, nil
}

// searchKB consults the knowledge base when the query looks like a
// question. Search failures degrade to an empty result; the orchestrator
// still answers.
func (o *Orchestrator) searchKB(ctx context.Context, query string) (kbContext string, usedKB bool) {
	if !containsAny(strings.ToLower(query), kbSearchKeywords) {
		return "", false
	}

	o.recorder.LogStep(ctx, "kb_search", "Searching knowledge base", nil)
	result, err := emit.Tool(ctx, o.recorder, "search_kb", map[string]any{"query": query}, func(ctx context.Context) (string, error) {
		return o.searcher.Query(ctx, query)
	})
	if err != nil {
		o.logger.Warn("kb search failed", "error", err)
		o.recorder.LogStep(ctx, "kb_search_error", fmt.Sprintf("KB search failed: %v", err), nil)
		return search.NoResults, true
	}
	o.recorder.LogStep(ctx, "kb_search_complete", fmt.Sprintf("Found KB context: %d characters", len(result)), nil)
	return result, true
}

func (o *Orchestrator) delegate(ctx context.Context, query, kbContext string, usedKB bool, reason string) (OrchestrationResult, error) {
	o.recorder.LogStep(ctx, "delegation_decision", fmt.Sprintf("Decided to delegate: %s", reason), nil)
	o.recorder.LogDelegation(ctx, model.AgentOrchestrator, model.AgentSummarizer, reason,
		map[string]any{"query": query, "kb_context": kbContext}, nil)
	o.recorder.LogStep(ctx, "delegating", "Delegating to summarizer agent", nil)

	result, err := o.summarizer.Summarize(ctx, kbContext, query)
	if err != nil {
		return OrchestrationResult{}, fmt.Errorf("agent: delegate to summarizer: %w", err)
	}
	ctx = emit.WithAgent(ctx, model.AgentOrchestrator)
	o.recorder.LogStep(ctx, "delegation_complete", "Received response from summarizer", nil)

	o.recorder.LogAgentOutput(ctx, "orchestrator_response", result.Summary, true, "", map[string]any{
		"delegated_to": string(model.AgentSummarizer),
		"used_kb":      usedKB,
		"confidence":   0.8,
	})
	return OrchestrationResult{
		Response:    result.Summary,
		UsedKB:      usedKB,
		DelegatedTo: string(model.AgentSummarizer),
		Confidence:  0.8,
	}, nil
}

// shouldDelegate decides whether the summarizer should handle the
// query: either the query names an analysis task outright, or it asks
// for analysis of substantial retrieved context.
func shouldDelegate(query, kbContext string) (bool, string) {
	queryLower := strings.ToLower(query)

	hasKeywords := containsAny(queryLower, delegationIndicators)
	hasSubstantialContext := len(kbContext) > 200 && kbContext != search.NoResults
	isAnalysisQuery := containsAny(queryLower, analysisPhrases)

	delegate := hasKeywords || (hasSubstantialContext && isAnalysisQuery)
	reason := "analysis of KB content"
	if hasKeywords {
		reason = "delegation keywords"
	}
	return delegate, reason
}
