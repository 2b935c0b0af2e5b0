package memory

import (
	"context"
	"strings"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/observability"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWindow is how many recent messages the orchestrator loads.
const DefaultWindow = 20

// Trigger results, used as metric labels.
const (
	ResultUpdated  = "updated"
	ResultSkipped  = "skipped"
	ResultConflict = "conflict"
	ResultFailed   = "failed"
)

// SummaryBuilder builds a summary from a prior one and recent turns.
type SummaryBuilder interface {
	Build(ctx context.Context, prior string, turns []Turn) (string, error)
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	// Window is the number of recent messages loaded, default 20.
	Window  int
	Logger  log.Logger
	Metrics *observability.Metrics
}

// Orchestrator writes a rolling summary on each newly created message.
type Orchestrator struct {
	messages store.MessageStore
	builder  SummaryBuilder
	window   int
	logger   log.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewOrchestrator creates an Orchestrator reading and writing messages.
func NewOrchestrator(messages store.MessageStore, builder SummaryBuilder, config OrchestratorConfig) *Orchestrator {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	return &Orchestrator{
		messages: messages,
		builder:  builder,
		window:   config.Window,
		logger:   log.OrDefault(config.Logger),
		metrics:  config.Metrics,
		tracer:   observability.Tracer(),
	}
}

// Register subscribes the orchestrator to message creation events.
func (o *Orchestrator) Register(sub store.Subscriber) error {
	return sub.OnCreate(store.MessagePattern, o.HandleCreate)
}

// HandleCreate summarizes the message carried by ev. Failures are logged and
// swallowed; the returned error is always nil.
func (o *Orchestrator) HandleCreate(ctx context.Context, ev store.Event) error {
	msg := ev.Message
	if msg == nil || strings.TrimSpace(msg.Content) == "" || msg.Role == "" || msg.Summary != "" {
		o.metrics.IncSummary(ResultSkipped)
		return nil
	}

	key := store.ConversationKey{UserID: ev.Params["uid"], ConversationID: ev.Params["cid"]}
	if key.Validate() != nil {
		key = msg.Key()
	}
	mid := ev.Params["mid"]
	if mid == "" {
		mid = msg.ID
	}

	ctx, span := o.tracer.Start(ctx, "memory.summarize", trace.WithAttributes(
		attribute.String("campusrag.uid", key.UserID),
		attribute.String("campusrag.cid", key.ConversationID),
	))
	defer span.End()

	recent, err := o.messages.Recent(ctx, key, o.window)
	if err != nil {
		o.fail(span, key, mid, err)
		return nil
	}

	prior := PriorSummary(recent, mid)
	summary, err := o.builder.Build(ctx, prior, TurnsFromMessages(recent))
	if err != nil {
		o.fail(span, key, mid, err)
		return nil
	}

	applied, err := o.messages.SetSummary(ctx, key, mid, summary)
	if err != nil {
		o.fail(span, key, mid, err)
		return nil
	}
	if !applied {
		o.metrics.IncSummary(ResultConflict)
		o.logger.Info("summary.already_present uid=%s cid=%s mid=%s", key.UserID, key.ConversationID, mid)
		return nil
	}

	o.metrics.IncSummary(ResultUpdated)
	o.logger.Info("summary.updated uid=%s cid=%s mid=%s len=%d", key.UserID, key.ConversationID, mid, rag.Len(summary))
	return nil
}

func (o *Orchestrator) fail(span trace.Span, key store.ConversationKey, mid string, err error) {
	span.RecordError(err)
	o.metrics.IncSummary(ResultFailed)
	o.logger.Error("summary.failed uid=%s cid=%s mid=%s err=%v", key.UserID, key.ConversationID, mid, err)
}

// PriorSummary scans window backward, skipping the message with id skip,
// and returns the nearest non-empty summary.
func PriorSummary(window []*store.Message, skip string) string {
	for i := len(window) - 1; i >= 0; i-- {
		m := window[i]
		if m.ID == skip {
			continue
		}
		if s := strings.TrimSpace(m.Summary); s != "" {
			return m.Summary
		}
	}
	return ""
}
