package output

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh/spinner"
)

// SpinnerOption configures RunWithSpinner.
type SpinnerOption func(*spinnerConfig)

type spinnerConfig struct {
	title string
}

// WithTitle sets the line shown next to the spinner.
func WithTitle(title string) SpinnerOption {
	return func(c *spinnerConfig) {
		c.title = title
	}
}

// RunWithSpinner runs action while a spinner is drawn on the terminal.
// Off a terminal the action runs without one. Cancelling ctx stops the
// spinner; the action is expected to observe ctx itself and is waited for.
func RunWithSpinner(ctx context.Context, action func() error, opts ...SpinnerOption) error {
	cfg := spinnerConfig{title: "Building..."}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !IsTTY() {
		return action()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- action() }()

	var (
		actionErr error
		finished  bool
	)
	err := spinner.New().
		Title(cfg.title).
		Action(func() {
			select {
			case actionErr = <-errCh:
				finished = true
			case <-ctx.Done():
			}
		}).
		Run()
	if finished {
		return actionErr
	}

	// Spinner stopped first; wait for the builders to unwind.
	actionErr = <-errCh
	if err != nil && actionErr == nil {
		return fmt.Errorf("spinner: %w", err)
	}
	return actionErr
}
