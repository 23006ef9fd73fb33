package errors

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// ErrorHandler turns errors returned by commands into user-facing output and
// a process exit code.
type ErrorHandler struct {
	logger *logrus.Logger
	out    io.Writer
}

// NewErrorHandler creates a new error handler writing messages to out.
func NewErrorHandler(logger *logrus.Logger, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		out:    out,
	}
}

// HandleError prints a descriptive message for err and returns the exit code
// the process should terminate with.
func (h *ErrorHandler) HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}

	logEntry := h.logger.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"error_code": appErr.Code,
		"exit_code":  appErr.ExitCode,
	})
	if appErr.Err != nil {
		logEntry = logEntry.WithError(appErr.Err)
	}

	switch appErr.Type {
	case ErrorTypeInternal, ErrorTypeIO, ErrorTypeDependencyMissing:
		logEntry.Error(appErr.Message)
	default:
		logEntry.Warn(appErr.Message)
	}

	fmt.Fprintf(h.out, "Error: %s\n", userMessage(appErr))

	if appErr.ExitCode == ExitOK {
		return ExitFailure
	}
	return appErr.ExitCode
}

func userMessage(e *AppError) string {
	if e.Err != nil && e.Type != ErrorTypeInvalidArgument {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
