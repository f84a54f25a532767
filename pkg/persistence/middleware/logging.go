package middleware

import (
	"context"
	"log/slog"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

type loggingMiddleware struct {
	ports.Store
	logger *slog.Logger
}

// NewLoggingMiddleware logs every write reaching the store at Debug level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.Store) ports.Store {
		return &loggingMiddleware{Store: next, logger: logger}
	}
}

func (m *loggingMiddleware) Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error {
	err := m.Store.Put(ctx, typeName, pk, record)
	m.logger.Debug("Store put", "type", typeName, "pk", pk, "fields", len(record), "err", err)
	return err
}

func (m *loggingMiddleware) Delete(ctx context.Context, typeName string, pk domain.PK) error {
	err := m.Store.Delete(ctx, typeName, pk)
	m.logger.Debug("Store delete", "type", typeName, "pk", pk, "err", err)
	return err
}

func (m *loggingMiddleware) Link(ctx context.Context, through string, src, dst domain.PK) error {
	err := m.Store.Link(ctx, through, src, dst)
	m.logger.Debug("Store link", "through", through, "src", src, "dst", dst, "err", err)
	return err
}

func (m *loggingMiddleware) Unlink(ctx context.Context, through string, src, dst domain.PK) error {
	err := m.Store.Unlink(ctx, through, src, dst)
	m.logger.Debug("Store unlink", "through", through, "src", src, "dst", dst, "err", err)
	return err
}
