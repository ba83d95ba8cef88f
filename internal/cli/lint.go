package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/catalog"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

func newLintCommand() *cobra.Command {
	var builtin bool
	cmd := &cobra.Command{
		Use:   "lint [catalog.yaml...]",
		Short: "Check data provider catalogs for authoring mistakes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !builtin {
				return sserr.New(sserr.CodeValidationRequired, "lint: no catalogs given (pass files or --builtin)")
			}

			type target struct {
				name string
				load func() (*catalog.Catalog, error)
			}
			var targets []target
			if builtin {
				for _, name := range catalog.BuiltinNames() {
					targets = append(targets, target{"builtin:" + name, func() (*catalog.Catalog, error) {
						return catalog.Builtin(name)
					}})
				}
			}
			for _, path := range args {
				targets = append(targets, target{path, func() (*catalog.Catalog, error) {
					return catalog.Load(path)
				}})
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, tg := range targets {
				c, err := tg.load()
				if err != nil {
					failed++
					printProblems(cmd, tg.name, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok (%s, %d cases)\n", tg.name, c.Method, c.Len())
			}
			if failed > 0 {
				return sserr.Newf(sserr.CodeValidation, "lint: %d of %d catalogs failed", failed, len(targets))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&builtin, "builtin", false, "also lint the catalogs embedded in the binary")
	return cmd
}

// printProblems writes one line per lint problem, or the error itself
// when the catalog could not be parsed.
func printProblems(cmd *cobra.Command, name string, err error) {
	out := cmd.OutOrStdout()
	if e, ok := sserr.AsError(err); ok {
		if v, ok := e.Detail("problems"); ok {
			if problems, ok := v.([]string); ok {
				for _, p := range problems {
					fmt.Fprintf(out, "%s: %s\n", name, p)
				}
				return
			}
		}
	}
	fmt.Fprintf(out, "%s: %v\n", name, err)
}

func newCatalogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogs",
		Short: "List the built-in catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range catalog.BuiltinNames() {
				c, err := catalog.Builtin(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%d\n", name, c.Method, c.Len())
			}
			return nil
		},
	}
}
