// Package errors provides small error-handling helpers for netwatch.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure instead of dropping it.
// Closing something that is already closed is not reported.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && !stderrors.Is(err, os.ErrClosed) {
		logger.Warn().Err(err).Msg(msg)
	}
}

// Must panics if error is not nil.
// Use only for initialization code where failure should halt the program.
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
