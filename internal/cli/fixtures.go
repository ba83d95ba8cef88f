package cli

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/apitest"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
)

func newBuildCommand(flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build <graph.yaml>",
		Short: "Create a fixture graph and keep it",
		Long: `Build creates the entities of a graph file through the API and
writes the resulting registry dump. The fixtures stay in place; remove
them later with "fixturectl teardown". If the build fails, whatever was
created is deleted again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g, err := fixture.LoadGraph(args[0])
			if err != nil {
				return err
			}
			env, err := openEnv(ctx, cmd, flags)
			if err != nil {
				return err
			}
			if err := env.Build(ctx, g); err != nil {
				return errors.Join(err, env.Close(context.WithoutCancel(ctx)))
			}

			var buf bytes.Buffer
			if err := env.Registry().WriteYAML(&buf); err != nil {
				return errors.Join(err, env.Close(context.WithoutCancel(ctx)))
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
			} else {
				err = os.WriteFile(out, buf.Bytes(), 0o600)
			}
			if err != nil {
				return errors.Join(err, env.Close(context.WithoutCancel(ctx)))
			}
			return env.Detach(ctx)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "registry dump file (default stdout)")
	return cmd
}

func newTeardownCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown <registry.yaml>",
		Short: "Delete the fixtures listed in a registry dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := readRegistry(args[0])
			if err != nil {
				return err
			}
			env, err := openEnv(ctx, cmd, flags)
			if err != nil {
				return err
			}
			if err := env.Adopt(reg.Dump()); err != nil {
				return errors.Join(err, env.Detach(ctx))
			}
			return env.Close(ctx)
		},
	}
}

func openEnv(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*apitest.Env, error) {
	settings, err := apitest.LoadSettings(flags.settingsFile)
	if err != nil {
		return nil, err
	}
	return apitest.NewEnv(ctx, settings, apitest.WithLogger(flags.logger(cmd.ErrOrStderr())))
}
