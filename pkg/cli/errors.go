package cli

import "fmt"

// ConfigError wraps a failure to load or validate the configuration. Path
// is empty when only defaults and the environment were used.
type ConfigError struct {
	Path string
	Err  error
}

// NewConfigError returns a ConfigError for the file at path.
func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

func (e *ConfigError) Error() string {
	where := ""
	if e.Path != "" {
		where = " in " + e.Path
	}
	return fmt.Sprintf("config error%s: %v", where, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CommandError names the subcommand that failed, e.g. "kv get".
type CommandError struct {
	Command string
	Err     error
}

// NewCommandError returns a CommandError for command.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
