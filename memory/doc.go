// Package memory keeps the bounded conversational memory used by the answer
// engine.
//
// # Rolling Summary
//
// RollingSummaryBuilder turns a prior summary and the most recent turns into
// a new cumulative French summary of at most 1200 characters, always opening
// with the header "Jusqu'ici, nous avons parlé de :".
//
//	builder := memory.NewRollingSummaryBuilder(llm, memory.SummaryConfig{
//		Model: "swiss-ai/Apertus-8B-Instruct-2509",
//	})
//	summary, err := builder.Build(ctx, prior, []memory.Turn{
//		{Role: "user", Content: "Je suis en IN, 2e année."},
//		{Role: "assistant", Content: "Noté."},
//	})
//
// # Trigger Orchestrator
//
// Orchestrator reacts to message-created events. For each new message
// without a summary it loads the recent window, finds the nearest earlier
// summary, builds the new one and writes it with a conditional update so an
// existing summary is never overwritten:
//
//	bus := store.NewBus(logger)
//	messages := store.NewPublishingStore(backend, bus)
//	orch := memory.NewOrchestrator(messages, builder, memory.OrchestratorConfig{})
//	if err := orch.Register(bus); err != nil {
//		return err
//	}
//
// Failures are logged as summary.failed and never retried. The next turn
// simply falls back to an older summary.
//
// # Titles
//
// TitleGenerator derives a short conversation title from the first question.
package memory
