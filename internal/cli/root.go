// Package cli implements the fixturectl command line: catalog linting,
// offline reference resolution, table hashing and fixture graphs that
// outlive a single process (build now, tear down later).
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Exit codes returned by ExitCode.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitAuthor = 2
)

type globalFlags struct {
	settingsFile string
	verbose      bool
}

// NewRootCommand returns the fixturectl command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "fixturectl",
		Short:         "Inspect catalogs and manage API test fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.settingsFile, "settings", "",
		"settings file (default apitest.yaml; APITEST_* variables override it)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newLintCommand(),
		newCatalogsCommand(),
		newResolveCommand(),
		newHashCommand(),
		newBuildCommand(flags),
		newTeardownCommand(flags),
	)
	return root
}

// ExitCode maps an error to the process exit code. Mistakes in catalogs,
// graphs or references exit with ExitAuthor.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case sserr.IsAuthorError(err):
		return ExitAuthor
	default:
		return ExitFailed
	}
}

func (f *globalFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
