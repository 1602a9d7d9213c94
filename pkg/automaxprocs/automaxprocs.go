package automaxprocs

import (
	"fmt"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"go.uber.org/automaxprocs/maxprocs"
)

var undo func()

// Init sets GOMAXPROCS to match the Linux container CPU quota, if any.
// A no-op on non-Linux systems and in environments without a quota.
func Init() error {
	setMaxProcsLogger := func(format string, v ...any) {
		logger.Info(fmt.Sprintf(format, v...),
			slogx.String("package", "automaxprocs"),
			slogx.Int("maxprocs", Current()),
		)
	}

	revert, err := maxprocs.Set(maxprocs.Logger(setMaxProcsLogger), maxprocs.Min(1))
	if err != nil {
		return errors.WithStack(err)
	}
	undo = revert
	return nil
}

// Undo restores GOMAXPROCS to its value before Init and returns the current
// value.
func Undo() int {
	if undo != nil {
		undo()
	}
	return Current()
}

// Current returns the current value of GOMAXPROCS.
func Current() int {
	return runtime.GOMAXPROCS(0)
}
