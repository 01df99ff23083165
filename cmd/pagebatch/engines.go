package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/install"
)

func engineArg(args []string) (api.EngineType, error) {
	if len(args) == 0 {
		return api.DefaultEngine, nil
	}
	return api.ParseEngineType(args[0])
}

func newResolveCommand(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "resolve [engine]",
		Short:     "Print the path of an installed engine executable",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: engineNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := engineArg(args)
			if err != nil {
				return err
			}
			root, err := gs.installRoot()
			if err != nil {
				return err
			}
			path, err := executable.NewResolver(afero.NewOsFs()).Resolve(engine, root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(gs.stdout, path)
			return err
		},
	}
	cmd.Flags().String("install-root", "", "engine install directory (default is the playwright cache)")

	return cmd
}

func newInstallCommand(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "install [engine]",
		Short:     "Install an engine with the playwright driver",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: engineNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := engineArg(args)
			if err != nil {
				return err
			}
			root, err := gs.installRoot()
			if err != nil {
				return err
			}
			if err := install.NewPlaywright(root, gs.logger).EnsureInstalled(cmd.Context(), engine); err != nil {
				return err
			}
			path, err := executable.NewResolver(afero.NewOsFs()).Resolve(engine, root)
			if err != nil {
				return fmt.Errorf("installed %s but %w", engine, err)
			}
			_, err = fmt.Fprintln(gs.stdout, path)
			return err
		},
	}
	cmd.Flags().String("install-root", "", "engine install directory (default is the playwright cache)")

	return cmd
}

func engineNames() []string {
	var names []string
	for _, e := range api.Engines() {
		names = append(names, e.String())
	}
	return names
}
