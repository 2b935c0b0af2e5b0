// Package rag holds the shared data model of the campusrag answer engine.
//
// An answer request flows through the sub-packages in this order:
//
//	gate       small-talk classifier and score gate
//	embedding  question vector from an OpenAI-compatible embeddings endpoint
//	qdrant     dense and sparse search against one Qdrant collection
//	retriever  concurrent hybrid search fused with Reciprocal Rank Fusion
//	assembler  per-source grouping and a character budget for the prompt context
//	engine     prompt construction, chat completion and the AnswerResult
//
// The types in this package are plain values. Query is immutable for the
// duration of a request; Candidate and FusedCandidate live only inside one
// retrieval; ContextChunk values are request-local and never persisted.
//
// # Errors
//
// Every classified failure is an *Error carrying a Kind:
//
//	KindUpstream           embedding or vector-search service failure, or an empty result
//	KindDegradedRetrieval  sparse search failed and retrieval continued dense-only
//	KindInvalidArgument    empty question, or nothing left to embed after sanitizing
//	KindModel              chat completion failure or empty model output
//
// Use errors.Is with the sentinels (ErrUpstream, ErrInvalidArgument, ...) or
// KindOf to branch on the kind. No component retries.
package rag
