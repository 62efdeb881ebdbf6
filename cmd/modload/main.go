// Command modload resolves and loads modules from the command line.
//
//	modload resolve ./util#a.b --origin https://app.example.com
//	modload load app/main.js --manifest modules.yaml -o json
//	modload repl
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/modload/linker"
	"github.com/wippyai/modload/manifest"
	"github.com/wippyai/modload/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var interactive bool

	root := &cobra.Command{
		Use:           "modload",
		Short:         "Resolve and load JavaScript and WebAssembly modules",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive {
				return cmd.Help()
			}
			return runREPL(cmd)
		},
	}
	addConfigFlags(root)
	root.Flags().BoolVarP(&interactive, "interactive", "i", false, "start the interactive loader")

	root.AddCommand(newResolveCmd(), newLoadCmd(), newReplCmd())
	return root
}

func newResolveCmd() *cobra.Command {
	var referrer string
	cmd := &cobra.Command{
		Use:   "resolve <id>...",
		Short: "Print the canonical id, url and anchors of identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			out := make([]map[string]any, 0, len(args))
			for _, raw := range args {
				ident, err := rt.Resolve(raw, referrer)
				if err != nil {
					return err
				}
				out = append(out, map[string]any{
					"id":      ident.ID,
					"url":     ident.URL,
					"anchors": ident.Anchors,
				})
			}
			if len(out) == 1 {
				return writeValue(cmd.OutOrStdout(), v.GetString(keyOutput), out[0])
			}
			return writeValue(cmd.OutOrStdout(), v.GetString(keyOutput), out)
		},
	}
	cmd.Flags().StringVar(&referrer, "referrer", "", "url the identifiers are relative to")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var referrer string
	cmd := &cobra.Command{
		Use:   "load <id>...",
		Short: "Load modules and print their exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			scope := rt.NewScope("cli")
			defer scope.Destroy()

			vals, err := scope.LoadMany(cmd.Context(), args, withReferrer(referrer)...)
			if err != nil {
				return err
			}
			if len(vals) == 1 {
				return writeValue(cmd.OutOrStdout(), v.GetString(keyOutput), vals[0])
			}
			out := make(map[string]any, len(args))
			for i, id := range args {
				out[id] = vals[i]
			}
			return writeValue(cmd.OutOrStdout(), v.GetString(keyOutput), out)
		},
	}
	cmd.Flags().StringVar(&referrer, "referrer", "", "url the identifiers are relative to")
	return cmd
}

func withReferrer(referrer string) []linker.LoadOption {
	if referrer == "" {
		return nil
	}
	return []linker.LoadOption{linker.WithReferrer(referrer)}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Load modules interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd)
		},
	}
}

func runREPL(cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	v, rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())
	return runInteractive(cmd.Context(), rt, v.GetString(keyOrigin))
}

// setup reads configuration, builds the runtime and registers manifests in
// its global scope.
func setup(cmd *cobra.Command) (*viper.Viper, *runtime.Runtime, error) {
	v, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(v.GetBool(keyVerbose))
	if err != nil {
		return nil, nil, err
	}

	rt, err := runtime.New(cmd.Context(), runtimeOptions(v, log))
	if err != nil {
		return nil, nil, err
	}
	for _, path := range v.GetStringSlice(keyManifest) {
		f, err := manifest.ParseFile(path)
		if err != nil {
			_ = rt.Close(cmd.Context())
			return nil, nil, err
		}
		if _, err := f.Register(rt.Global()); err != nil {
			_ = rt.Close(cmd.Context())
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Debug("registered manifest", zap.String("path", path), zap.Int("modules", len(f.Modules)))
	}
	return v, rt, nil
}
