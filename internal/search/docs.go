package search

import "github.com/google/uuid"

// docsNamespace derives stable point IDs from document text, so
// re-seeding the collection upserts in place instead of duplicating.
var docsNamespace = uuid.MustParse("9f2c1f7e-28a4-4bfa-9f25-6f3d3f6b2c11")

// builtinDocs is the small knowledge base shipped with the binary. It
// seeds the vector collection on startup and backs the static searcher
// when no vector store is configured.
var builtinDocs = []struct {
	category string
	text     string
}{
	{"setup", "Set LLM_BASE_URL and LLM_API_KEY to point the agents at your model provider. Without them the orchestrator refuses live queries."},
	{"setup", "Set QDRANT_URL to enable vector search for the knowledge base. When unset, a built-in static document set answers queries instead."},
	{"usage", "POST /api/run/simulate with {\"query\": \"...\"} to process a query through the agent pipeline. Pass \"simulate\": true to generate a synthetic run without calling the LLM."},
	{"telemetry", "Every run records agent events: inputs, outputs, delegations, tool calls, and errors. Fetch them with GET /api/telemetry/{run_id}."},
	{"diagram", "The diagram synthesizer converts a run's telemetry into a React Flow graph of agent, tool, and handoff nodes. It runs automatically after each query."},
	{"troubleshooting", "A run listed as failed keeps its partial telemetry. Inspect the error events in GET /api/telemetry/{run_id} to find the agent that raised them."},
}

// BuiltinDocs returns the built-in knowledge base as indexable
// documents with deterministic IDs.
func BuiltinDocs() []Document {
	docs := make([]Document, 0, len(builtinDocs))
	for _, d := range builtinDocs {
		docs = append(docs, Document{
			ID:       uuid.NewSHA1(docsNamespace, []byte(d.text)),
			Category: d.category,
			Text:     d.text,
		})
	}
	return docs
}

// BuiltinHits returns the built-in knowledge base as static-searcher
// hits.
func BuiltinHits() []Hit {
	hits := make([]Hit, 0, len(builtinDocs))
	for _, d := range builtinDocs {
		hits = append(hits, Hit{Category: d.category, Text: d.text})
	}
	return hits
}
