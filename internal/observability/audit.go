package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const auditEventVersion = 1

type AuditInput struct {
	EventName   string
	ActorUserID string
	Action      string
	Outcome     string
	Reason      string
}

type AuditEvent struct {
	EventVersion int    `json:"event_version"`
	EventName    string `json:"event_name"`
	ActorUserID  string `json:"actor_user_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason"`
	TraceID      string `json:"trace_id,omitempty"`
	TS           string `json:"ts"`
}

func BuildAuditEvent(ctx context.Context, in AuditInput) AuditEvent {
	ev := AuditEvent{
		EventVersion: auditEventVersion,
		EventName:    in.EventName,
		ActorUserID:  in.ActorUserID,
		Action:       in.Action,
		Outcome:      in.Outcome,
		Reason:       in.Reason,
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
	if ev.ActorUserID == "" {
		ev.ActorUserID = "anonymous"
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}
	return ev
}

func (e AuditEvent) Validate() error {
	var missing []string
	if e.EventVersion <= 0 {
		missing = append(missing, "event_version")
	}
	if e.EventName == "" {
		missing = append(missing, "event_name")
	}
	if e.ActorUserID == "" {
		missing = append(missing, "actor_user_id")
	}
	if e.Action == "" {
		missing = append(missing, "action")
	}
	if e.Outcome == "" {
		missing = append(missing, "outcome")
	}
	if e.TS == "" {
		missing = append(missing, "ts")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid audit event: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

var ErrInvalidAuditEvent = errors.New("invalid audit event")

// Audit writes a structured audit line. Events failing validation are
// dropped with an error log instead of being emitted half-populated.
func Audit(ctx context.Context, logger *slog.Logger, in AuditInput) {
	if logger == nil {
		logger = NewLogger()
	}
	ev := BuildAuditEvent(ctx, in)
	if err := ev.Validate(); err != nil {
		logger.ErrorContext(ctx, "audit event dropped", "error", errors.Join(ErrInvalidAuditEvent, err), "event_name", in.EventName)
		return
	}
	logger.InfoContext(ctx, "audit",
		"event_version", ev.EventVersion,
		"event_name", ev.EventName,
		"actor_user_id", ev.ActorUserID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
		"ts", ev.TS,
	)
}
