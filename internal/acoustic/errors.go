package acoustic

import "fmt"

// ConfigurationError reports an unusable model configuration, such as an
// unknown model family or a dense-residual unit with no input widths.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bad model configuration: %s", e.Reason)
}

func configErrf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
