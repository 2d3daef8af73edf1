package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/listkeep/internal/api"
	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/fetcher"
	"github.com/pbaille/listkeep/internal/input"
	"github.com/pbaille/listkeep/internal/store"
)

func addCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add [text...]",
		Short: "Add items; separate several with commas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := input.ParseInput(strings.Join(args, " "))
			if len(texts) == 0 {
				return fmt.Errorf("nothing to add")
			}

			added, err := a.store.AddItems(texts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, it := range added {
				printf(out, "Added %s  %s\n", shortID(it.ID), truncate(it.Text, 60))
			}
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var pending, done bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := a.store.Load()
			renderList(cmd.OutOrStdout(), doc, filterFor(pending, done))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only items not yet done")
	cmd.Flags().BoolVar(&done, "done", false, "only completed items")
	return cmd
}

func doneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Toggle an item complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveID(a.store.Load(), args[0])
			if err != nil {
				return err
			}
			it, err := a.store.ToggleItem(id)
			if err != nil {
				return err
			}
			state := "pending"
			if it.Completed {
				state = "done"
			}
			printf(cmd.OutOrStdout(), "%s  %s (%s)\n", shortID(it.ID), truncate(it.Text, 60), state)
			return nil
		},
	}
}

func editCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [id] [text...]",
		Short: "Change the text of an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveID(a.store.Load(), args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			it, err := a.store.UpdateItem(id, domain.ItemUpdate{Text: &text})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s  %s\n", shortID(it.ID), truncate(it.Text, 60))
			return nil
		},
	}
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveID(a.store.Load(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteItem(id); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Removed %s\n", shortID(id))
			return nil
		},
	}
}

func clearCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item and reset settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			if err := a.store.ClearAll(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Cleared\n")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write a JSON backup to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.store.ExportData()
			if err != nil {
				return err
			}
			if len(args) == 0 || args[0] == "-" {
				printf(cmd.OutOrStdout(), "%s\n", out)
				return nil
			}
			if err := os.WriteFile(args[0], []byte(out+"\n"), 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			printf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(a.store.Load().Items), args[0])
			return nil
		},
	}
}

func importCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file|url|-]",
		Short: "Replace the list with a JSON backup, or add the items of an HTML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			out := cmd.OutOrStdout()

			if fetcher.IsURL(src) {
				payload, err := fetcher.New().Fetch(cmd.Context(), src)
				if err != nil {
					return err
				}
				if len(payload.Items) > 0 {
					added, err := a.store.AddItems(payload.Items)
					if err != nil {
						return err
					}
					printf(out, "Added %d items from %s\n", len(added), src)
					return nil
				}
				return importDocument(a, out, payload.Document)
			}

			var (
				b   []byte
				err error
			)
			if src == "-" {
				b, err = io.ReadAll(cmd.InOrStdin())
			} else {
				b, err = os.ReadFile(src)
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", src, err)
			}
			return importDocument(a, out, string(b))
		},
	}
}

func importDocument(a *app, out io.Writer, text string) error {
	if err := a.store.ImportData(text); err != nil {
		return err
	}
	printf(out, "Imported %d items\n", len(a.store.Load().Items))
	return nil
}

func checkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that storage accepts writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.store.IsStorageAvailable() {
				return fmt.Errorf("storage %s at %s is not writable", a.cfg.Backend, a.cfg.Path)
			}
			printf(cmd.OutOrStdout(), "Storage ok (%s)\n", a.cfg.Backend)
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the list again whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			m := store.NewMirror(a.store)
			changed, unsubscribe := m.Subscribe()
			defer unsubscribe()

			errc := make(chan error, 1)
			go func() { errc <- m.Run(ctx) }()

			out := cmd.OutOrStdout()
			renderList(out, m.Document(), nil)
			for {
				select {
				case <-changed:
					printf(out, "\n")
					renderList(out, m.Document(), nil)
				case err := <-errc:
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			}
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			server := api.New(a.store, a.cfg.Addr, a.log)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringP("addr", "a", ":8080", "server address")
	return cmd
}
