package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goldensig/goldensig/server/internal/compute"
	"github.com/goldensig/goldensig/server/internal/dataset"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Command completed
	ExitError       = 1 // Configuration or runtime error
	ExitInvalidData = 2 // The dataset could not be loaded or scored
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, dataset.ErrEmpty),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, dataset.ErrDuplicateBatch),
		errors.Is(err, dataset.ErrDuplicateColumn),
		errors.Is(err, dataset.ErrUnsupportedFormat),
		errors.Is(err, compute.ErrEmpty),
		errors.Is(err, compute.ErrZeroRange),
		errors.Is(err, compute.ErrNonFinite):
		return ExitInvalidData
	default:
		return ExitError
	}
}
