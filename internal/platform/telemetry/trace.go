// Package telemetry wraps OpenTelemetry tracing for service operations. The
// global tracer provider is a no-op until the process installs one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span for a service operation:
//
//	ctx, span := telemetry.StartSpan(ctx, TracerRoles, "roles.ActivateRole",
//	    attribute.String(telemetry.AttrAccountID, accountID.String()),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed. Nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent records a business event such as a repair or a rollback.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

const (
	TracerRoles      = "rolesync/roles"
	TracerBootstrap  = "rolesync/bootstrap"
	TracerResolution = "rolesync/resolution"
	TracerSync       = "rolesync/sync"
)

const (
	AttrAccountID     = "account.id"
	AttrRoleID        = "role.id"
	AttrRoleType      = "role.type"
	AttrTargetRole    = "role.target_type"
	AttrRoleCount     = "role.count"
	AttrPropertyCount = "sync.property_count"
	AttrSyncedCount   = "sync.synced_count"
	AttrAttempt       = "store.attempt"
	AttrCorrections   = "resolution.corrections"
)
