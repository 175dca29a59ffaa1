package store

import (
	"context"
	"errors"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Traced wraps a resource store so each call runs in its own span.
func Traced[T models.Resource](kind string, inner ResourceStore[T]) ResourceStore[T] {
	return &tracedStore[T]{kind: kind, inner: inner}
}

// TracedClasses is Traced for the class store.
func TracedClasses(inner ClassStore) ClassStore {
	return &tracedClassStore{tracedStore: tracedStore[*models.InternalClass]{kind: "internal_class", inner: inner}, classes: inner}
}

type tracedStore[T models.Resource] struct {
	kind  string
	inner ResourceStore[T]
}

func (s *tracedStore[T]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.operation", op), attribute.String("eduhub.kind", s.kind))
	return telemetry.StartSpan(ctx, "store."+s.kind+"."+op, attrs...)
}

// endSpan does not count ErrNotFound as a failure.
func endSpan(span trace.Span, err error) {
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("eduhub.not_found", true))
		err = nil
	}
	telemetry.EndSpan(span, err)
}

func (s *tracedStore[T]) Create(ctx context.Context, rec T) (err error) {
	ctx, span := s.start(ctx, "create")
	defer func() { endSpan(span, err) }()
	return s.inner.Create(ctx, rec)
}

func (s *tracedStore[T]) Get(ctx context.Context, id int64) (_ T, err error) {
	ctx, span := s.start(ctx, "get", attribute.Int64("eduhub.id", id))
	defer func() { endSpan(span, err) }()
	return s.inner.Get(ctx, id)
}

func (s *tracedStore[T]) Update(ctx context.Context, rec T) (err error) {
	ctx, span := s.start(ctx, "update", attribute.Int64("eduhub.id", rec.Base().ID))
	defer func() { endSpan(span, err) }()
	return s.inner.Update(ctx, rec)
}

func (s *tracedStore[T]) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "delete", attribute.Int64("eduhub.id", id))
	defer func() { endSpan(span, err) }()
	return s.inner.Delete(ctx, id)
}

func (s *tracedStore[T]) List(ctx context.Context, opts ListOptions) (_ []T, _ int, err error) {
	ctx, span := s.start(ctx, "list", attribute.Int("eduhub.offset", opts.Offset), attribute.Int("eduhub.limit", opts.Limit))
	defer func() { endSpan(span, err) }()
	return s.inner.List(ctx, opts)
}

func (s *tracedStore[T]) Stats(ctx context.Context, opts StatsOptions) (_ *Stats, err error) {
	ctx, span := s.start(ctx, "stats")
	defer func() { endSpan(span, err) }()
	return s.inner.Stats(ctx, opts)
}

type tracedClassStore struct {
	tracedStore[*models.InternalClass]
	classes ClassStore
}

func (s *tracedClassStore) ListAvailable(ctx context.Context, day time.Time) (_ []*models.InternalClass, err error) {
	ctx, span := s.start(ctx, "list_available")
	defer func() { endSpan(span, err) }()
	return s.classes.ListAvailable(ctx, day)
}

func (s *tracedClassStore) ListPopular(ctx context.Context, limit int) (_ []*models.InternalClass, err error) {
	ctx, span := s.start(ctx, "list_popular", attribute.Int("eduhub.limit", limit))
	defer func() { endSpan(span, err) }()
	return s.classes.ListPopular(ctx, limit)
}

func (s *tracedClassStore) Enroll(ctx context.Context, classID int64, inquiry *models.OutreachInquiry) (_ *models.InternalClass, err error) {
	ctx, span := s.start(ctx, "enroll", attribute.Int64("eduhub.id", classID))
	defer func() { endSpan(span, err) }()
	return s.classes.Enroll(ctx, classID, inquiry)
}
