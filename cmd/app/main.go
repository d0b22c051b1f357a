package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/rulekeeper/internal"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/rulestore"
	pkgconfig "github.com/starford/rulekeeper/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Serve(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
		if err := cfg.App.Validate(); err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stdout),
		internal.WithVersion(version),
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// storeAction adapts a one-shot store call into a command action. The result
// is printed as text, or as JSON with --json.
func storeAction(fn func(ctx context.Context, cmd *cli.Command, store *rulestore.Store, scope locate.Scope) (fmt.Stringer, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rt, err := internal.Open(internal.WithConfig(cfg))
		if err != nil {
			return err
		}
		defer rt.Close()

		scope, err := locate.ParseScope(cmd.String("scope"), cmd.String("dir"), rt.WorkDir)
		if err != nil {
			return err
		}
		res, err := fn(ctx, cmd, rt.Store, scope)
		if err != nil {
			return err
		}

		w := cmd.Root().Writer
		if cmd.Bool("json") {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		_, err = fmt.Fprintln(w, res.String())
		return err
	}
}

func selectorFrom(cmd *cli.Command) rulestore.Selector {
	var sel rulestore.Selector
	if cmd.IsSet("index") {
		sel = rulestore.At(int(cmd.Int("index")))
	}
	sel.Match = cmd.String("match")
	return sel
}

func commonFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringFlag{
			Name:  "scope",
			Usage: "Document resolution: auto or global",
			Value: locate.ModeAuto,
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"C"},
			Usage:   "Directory the project lookup starts from (default: working directory)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the result as JSON",
		},
	)
}

func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "index", Aliases: []string{"n"}, Usage: "Rule number as shown by list"},
		&cli.StringFlag{Name: "match", Aliases: []string{"m"}, Usage: "Text that matches exactly one rule"},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "rulekeeper",
		Usage:  "Keeps learned rules in the CLAUDE.md of a project or in the global one",
		Action: runServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the rule tools over MCP stdio (default)",
				Action: runServe,
			},
			{
				Name:   "http",
				Usage:  "Serve the REST API with live change events",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override app.http.port"}},
				Action: runHTTP,
			},
			{
				Name:      "add",
				Usage:     "Add a rule",
				ArgsUsage: "<rule text>",
				Flags: commonFlags(
					&cli.StringFlag{Name: "context", Usage: "Correction the rule was learned from"},
					&cli.StringFlag{Name: "category", Usage: "Category key (inferred when empty)"},
				),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.Add(ctx, rulestore.AddRequest{
						Text:     strings.Join(cmd.Args().Slice(), " "),
						Context:  cmd.String("context"),
						Category: cmd.String("category"),
						Scope:    scope,
					})
				}),
			},
			{
				Name:  "list",
				Usage: "List rules",
				Flags: commonFlags(
					&cli.StringFlag{Name: "category", Usage: "Only this category, or uncategorized"},
					&cli.BoolFlag{Name: "grouped", Aliases: []string{"g"}, Usage: "Group by category"},
				),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.List(ctx, rulestore.ListRequest{
						Category: cmd.String("category"),
						Grouped:  cmd.Bool("grouped"),
						Scope:    scope,
					})
				}),
			},
			{
				Name:  "delete",
				Usage: "Delete a rule by --index or --match",
				Flags: commonFlags(selectorFlags()...),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.Delete(ctx, rulestore.DeleteRequest{Selector: selectorFrom(cmd), Scope: scope})
				}),
			},
			{
				Name:      "update",
				Usage:     "Rewrite a rule selected by --index or --match",
				ArgsUsage: "<new rule text>",
				Flags: commonFlags(append(selectorFlags(),
					&cli.StringFlag{Name: "category", Usage: "Move the rule to this category"},
				)...),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.Update(ctx, rulestore.UpdateRequest{
						Selector: selectorFrom(cmd),
						Text:     strings.Join(cmd.Args().Slice(), " "),
						Category: cmd.String("category"),
						Scope:    scope,
					})
				}),
			},
			{
				Name:  "review",
				Usage: "Show old, recent and undated rules",
				Flags: commonFlags(
					&cli.IntFlag{Name: "threshold", Aliases: []string{"t"}, Usage: "Age in days from which a rule is old"},
				),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.Review(ctx, rulestore.ReviewRequest{ThresholdDays: int(cmd.Int("threshold")), Scope: scope})
				}),
			},
			{
				Name:  "history",
				Usage: "Show recent rule changes (needs journal.path)",
				Flags: commonFlags(
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Max entries"},
					&cli.BoolFlag{Name: "all", Usage: "Include every document"},
				),
				Action: storeAction(func(ctx context.Context, cmd *cli.Command, s *rulestore.Store, scope locate.Scope) (fmt.Stringer, error) {
					return s.History(ctx, rulestore.HistoryRequest{
						Limit:        int(cmd.Int("limit")),
						AllDocuments: cmd.Bool("all"),
						Scope:        scope,
					})
				}),
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
