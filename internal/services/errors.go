package services

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	ErrHostUnavailable         = errors.New("host unavailable")
	ErrScriptExecutionFailed   = errors.New("script execution failed")
	ErrMetadataCorrupt         = errors.New("metadata corrupt")
	ErrContainerNotFound       = errors.New("container not found")
	ErrDuplicateContainer      = errors.New("duplicate container")
	ErrWorkdirResolutionFailed = errors.New("workdir resolution failed")
	ErrTimeout                 = errors.New("timeout")
	ErrValidation              = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker so callers can classify it with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrScriptExecutionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRecoverable reports whether a metadata read failure may be treated as
// "nothing persisted yet". Host, timeout and workdir failures never are.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, ErrHostUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrWorkdirResolutionFailed):
		return false
	case errors.Is(err, ErrMetadataCorrupt), errors.Is(err, fs.ErrNotExist):
		return true
	default:
		return false
	}
}

// Hint returns a short operator-facing suggestion for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrHostUnavailable):
		return "check host.executable or ZBRIDGE_HOST_EXECUTABLE"
	case errors.Is(err, ErrTimeout):
		return "the host did not finish the script; raise host.script_timeout or check for modal dialogs"
	case errors.Is(err, ErrWorkdirResolutionFailed):
		return "set workdir.root or AVALON_WORKDIR and make sure the context is complete"
	case errors.Is(err, ErrMetadataCorrupt):
		return "inspect or delete the metadata file named in the error"
	case errors.Is(err, ErrDuplicateContainer):
		return "remove the existing container or enable registry.overwrite_existing"
	case errors.Is(err, ErrContainerNotFound):
		return "run 'zbridge containers list' to see registered containers"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "bridge failure"
	}
	return strings.Join(parts, ": ")
}
