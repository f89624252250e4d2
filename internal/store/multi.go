package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// Multi writes every record to a primary Store and fans it out to extra
// sinks. Reads are served by the primary. Errors from the extra sinks are
// logged and never returned.
type Multi struct {
	Store
	extra []Sink
}

// NewMulti combines primary with zero or more secondary sinks.
func NewMulti(primary Store, extra ...Sink) *Multi {
	return &Multi{Store: primary, extra: extra}
}

func (m *Multi) LogExecution(ctx context.Context, rec *model.ExecutionRecord) error {
	err := m.Store.LogExecution(ctx, rec)
	for _, s := range m.extra {
		if serr := s.LogExecution(ctx, rec); serr != nil {
			zap.L().Warn("store: secondary sink failed", zap.String("kind", EventExecution), zap.Error(serr))
		}
	}
	return err
}

func (m *Multi) LogSearch(ctx context.Context, rec *model.SearchRecord) error {
	err := m.Store.LogSearch(ctx, rec)
	for _, s := range m.extra {
		if serr := s.LogSearch(ctx, rec); serr != nil {
			zap.L().Warn("store: secondary sink failed", zap.String("kind", EventSearch), zap.Error(serr))
		}
	}
	return err
}

func (m *Multi) LogMessage(ctx context.Context, msg *model.Message) error {
	err := m.Store.LogMessage(ctx, msg)
	for _, s := range m.extra {
		if serr := s.LogMessage(ctx, msg); serr != nil {
			zap.L().Warn("store: secondary sink failed", zap.String("kind", EventMessage), zap.Error(serr))
		}
	}
	return err
}

// Close closes the primary and any extra sink that has a Close method.
func (m *Multi) Close() error {
	for _, s := range m.extra {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				zap.L().Warn("store: close secondary sink", zap.Error(err))
			}
		}
	}
	return m.Store.Close()
}
