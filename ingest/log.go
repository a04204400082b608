package ingest

import (
	"context"
	"log/slog"

	"github.com/sandrayoe/mms-version2/internal/log"
)

type pipelineLogger struct{ log.Logger }

func (l pipelineLogger) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelDebug, msg, attrs...)
}

func (l pipelineLogger) info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelInfo, msg, attrs...)
}

func (l pipelineLogger) warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.Log(ctx, slog.LevelWarn, msg, attrs...)
}
