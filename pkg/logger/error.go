package logger

import (
	"fmt"
	"log/slog"

	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
)

// errorAttrReplacer expands error attributes with the verbose representation
// produced by cockroachdb/errors so wrapped causes and stacks are visible.
func errorAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	if attr.Key != slogx.ErrorKey && attr.Key != "err" {
		return attr
	}
	if err, ok := attr.Value.Any().(error); ok && err != nil {
		return slog.Group(attr.Key,
			slog.String("message", err.Error()),
			slog.String("verbose", fmt.Sprintf("%+v", err)),
		)
	}
	return attr
}
