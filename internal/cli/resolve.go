package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/registry"
)

func newResolveCommand() *cobra.Command {
	var registryFile string
	cmd := &cobra.Command{
		Use:   "resolve --registry registry.yaml <params.yaml|->",
		Short: "Resolve the references in a params document against a registry dump",
		Long: `Resolve reads a YAML or JSON params document, replaces every
":kind:name" reference with the identifier stored in the registry dump
and prints the result as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := readRegistry(registryFile)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var params any
			if err := yaml.Unmarshal(data, &params); err != nil {
				return sserr.Wrap(err, sserr.CodeValidationFormat, "resolve: params are not valid YAML or JSON")
			}

			resolved, err := reference.NewResolver(reg).Resolve(params)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resolved)
		},
	}
	cmd.Flags().StringVar(&registryFile, "registry", "", "registry dump written by fixturectl build")
	_ = cmd.MarkFlagRequired("registry")
	return cmd
}

func readRegistry(path string) (*registry.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation, "cannot open registry dump %q", path)
	}
	defer f.Close()
	return registry.ReadYAML(f)
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeValidation, "cannot read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation, "cannot read %q", path)
	}
	return data, nil
}
