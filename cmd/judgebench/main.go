// Command judgebench drives conversations with a subject model, or replays
// recorded ones, and scores every answer with a judge model.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes for different failure modes.
const (
	ExitSuccess    = 0 // Every task was judged
	ExitTaskFailed = 1 // One or more tasks failed
	ExitError      = 2 // Configuration or runtime error
)

// TaskFailureError indicates that the run completed but at least one task
// could not be evaluated.
type TaskFailureError struct {
	Failed int
	Total  int
}

func (e *TaskFailureError) Error() string {
	return fmt.Sprintf("%d of %d tasks failed", e.Failed, e.Total)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()

		var taskErr *TaskFailureError
		if errors.As(err, &taskErr) {
			os.Exit(ExitTaskFailed)
		}
		os.Exit(ExitError)
	}
}
