package main

import (
	"fmt"

	"leadgen-sync/internal/bootstrap"
	"leadgen-sync/internal/config"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type app struct {
	generations service.IGenerationService
	closeStore  func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "karmactl",
		Short:         "Inspect cached karma content",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeStore()
		},
	}
	root.AddCommand(newShowCmd(a), newClearCmd(a))
	return root
}

func (a *app) open() error {
	store, closeStore, err := bootstrap.OpenStore(config.Load().Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	// Only the cache side of the service is used; nothing is generated here.
	a.generations = service.NewGenerationService(nil, store, logger.NewNopLogger())
	a.closeStore = closeStore
	return nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [kind]",
		Short: "Print cached generations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := entity.GenerationKinds
			if len(args) == 1 {
				kind := entity.GenerationKind(args[0])
				if !kind.Valid() {
					return fmt.Errorf("%w: %s", service.ErrUnknownKind, kind)
				}
				kinds = []entity.GenerationKind{kind}
			}
			for _, kind := range kinds {
				gen, ok := a.generations.GetCached(cmd.Context(), kind)
				printGeneration(cmd, kind, gen, ok)
			}
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.generations.ClearCached(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			color.Green("Cache cleared")
			return nil
		},
	}
}

func printGeneration(cmd *cobra.Command, kind entity.GenerationKind, gen *entity.Generation, ok bool) {
	out := cmd.OutOrStdout()
	color.New(color.FgCyan).Fprintf(out, "[%s]\n", kind)

	if !ok {
		color.New(color.FgYellow).Fprintln(out, "  nothing cached")
		return
	}

	fmt.Fprintf(out, "  generated at %s\n", gen.GeneratedAt.Format("2006-01-02 15:04:05"))
	switch gen.Shape {
	case entity.ShapeSingle:
		color.New(color.FgGreen).Fprintf(out, "  %s\n", gen.Post.Title)
		if gen.Post.Subreddit != "" {
			fmt.Fprintf(out, "  r/%s\n", gen.Post.Subreddit)
		}
		if gen.Post.Description != "" {
			fmt.Fprintf(out, "  %s\n", gen.Post.Description)
		}
	case entity.ShapeBatch:
		for i, c := range gen.Comments {
			fmt.Fprintf(out, "  %d. %s\n", i+1, c.Comment)
		}
	}
}
