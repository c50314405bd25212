package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/stockpile/internal/config"
	"github.com/hpungsan/stockpile/internal/errors"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/item"
	"github.com/hpungsan/stockpile/internal/ops"
	"github.com/hpungsan/stockpile/internal/web"
)

// appDeps are the opened resources commands run against.
// Nil when only --help or --version is requested.
type appDeps struct {
	store  *inventory.Store
	policy ops.PathPolicy
	cfg    *config.Config
	log    zerolog.Logger
}

// listOutput is the JSON output of list, sort and delete.
type listOutput struct {
	inventory.View
	Warning string `json:"warning,omitempty"`
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *appDeps) *cli.App {
	app := &cli.App{
		Name:    "stockpile",
		Usage:   "Local inventory list manager",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(deps),
			updateCmd(deps),
			deleteCmd(deps),
			listCmd(deps),
			categoriesCmd(deps),
			sortCmd(deps),
			exportCmd(deps),
			importCmd(deps),
			reportCmd(deps),
			serveCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// itemFlags are the draft fields. They are validated by the store, not by flag parsing.
func itemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Item name"},
		&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category"},
		&cli.StringFlag{Name: "quantity", Aliases: []string{"q"}, Usage: "Quantity (positive whole number)"},
	}
}

// addCmd creates the add command.
func addCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a new item",
		Flags: itemFlags(),
		Action: func(c *cli.Context) error {
			saved, err := deps.store.SubmitDraft(item.Draft{
				Name:     c.String("name"),
				Category: c.String("category"),
				Quantity: c.String("quantity"),
			}, nil)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, saved)
		},
	}
}

// updateCmd creates the update command. Fields not given keep their current value.
func updateCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update an existing item",
		ArgsUsage: "<id>",
		Flags:     itemFlags(),
		Action: func(c *cli.Context) error {
			if err := applyTrailingFlags(c); err != nil {
				return outputError(err)
			}
			id, err := ops.ParseItemID(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if err := deps.store.BeginEdit(id); err != nil {
				return outputError(err)
			}
			draft := deps.store.Draft()
			if c.IsSet("name") {
				draft.Name = c.String("name")
			}
			if c.IsSet("category") {
				draft.Category = c.String("category")
			}
			if c.IsSet("quantity") {
				draft.Quantity = c.String("quantity")
			}
			deps.store.SetDraft(draft)

			saved, err := deps.store.Submit()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, saved)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an item (no-op if it does not exist)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := ops.ParseItemID(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			_, existed := deps.store.Get(id)
			if err := deps.store.DeleteItem(id); err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, map[string]any{
				"id":      id,
				"deleted": existed,
			})
		},
	}
}

// listCmd creates the list command.
func listCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List items with low-stock flags",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Value: inventory.AllCategories, Usage: "Show only this category"},
		},
		Action: func(c *cli.Context) error {
			deps.store.SetFilter(c.String("category"))
			return outputJSON(c.App.Writer, deps.listOutput())
		},
	}
}

// categoriesCmd creates the categories command.
func categoriesCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List distinct categories in first-seen order",
		Action: func(c *cli.Context) error {
			return outputJSON(c.App.Writer, deps.store.View().Categories)
		},
	}
}

// sortCmd creates the sort command.
func sortCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "sort",
		Usage: "Sort all items by quantity, lowest first, and save the order",
		Action: func(c *cli.Context) error {
			if err := deps.store.SortByQuantityAscending(); err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, deps.listOutput())
		},
	}
}

// exportCmd creates the export command.
func exportCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export items to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.stockpile/exports/inventory-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(deps.store.Items(), deps.policy, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import items from a JSONL export (all-or-nothing)",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "append", Usage: "Import mode: append|replace"},
		},
		Action: func(c *cli.Context) error {
			if err := applyTrailingFlags(c); err != nil {
				return outputError(err)
			}
			output, err := ops.Import(deps.store, deps.policy, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(c.App.Writer, output); err != nil {
				return err
			}
			if len(output.Errors) > 0 {
				return outputError(errors.NewInvalidRequest(
					fmt.Sprintf("import aborted: %d invalid line(s), nothing imported", len(output.Errors))))
			}
			return nil
		},
	}
}

// reportCmd creates the report command.
func reportCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print a Markdown stock report",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprint(c.App.Writer, ops.Report(deps.store.Items(), time.Now()))
			return err
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to listen on (default from config, 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config, 8765)"},
		},
		Action: func(c *cli.Context) error {
			bind := deps.cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := deps.cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port: %d", port)))
			}

			srv, err := web.NewServer(deps.store, web.Options{
				Version: Version,
				Bind:    bind,
				Port:    port,
				Policy:  deps.policy,
				Logger:  deps.log,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, deps.log)
		},
	}
}

func (d *appDeps) listOutput() listOutput {
	out := listOutput{View: d.store.View()}
	if warn := d.store.Warning(); warn != nil {
		out.Warning = warn.Message
	}
	return out
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// applyTrailingFlags sets flags written after the positional argument, as in
// "update 12 --quantity 3". urfave/cli stops flag parsing at the first
// positional, leaving them in Args().Tail(). Anything else there is rejected.
func applyTrailingFlags(c *cli.Context) error {
	args := c.Args().Tail()
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-" || arg == "--" || !strings.HasPrefix(arg, "-") {
			return errors.NewInvalidRequest(fmt.Sprintf("unexpected argument: %s", arg))
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		flag := lookupFlag(c.Command.Flags, name)
		if flag == nil {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown flag: %s", arg))
		}
		if !hasValue {
			if i+1 >= len(args) {
				return errors.NewInvalidRequest(fmt.Sprintf("flag needs a value: %s", arg))
			}
			i++
			value = args[i]
		}
		if err := c.Set(flag.Names()[0], value); err != nil {
			return errors.NewInvalidRequest(err.Error())
		}
	}
	return nil
}

func lookupFlag(flags []cli.Flag, name string) cli.Flag {
	for _, f := range flags {
		for _, n := range f.Names() {
			if n == name {
				return f
			}
		}
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := err.(*errors.StockError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
