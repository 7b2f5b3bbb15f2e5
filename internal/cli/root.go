// Package cli implements the dolist command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/and161185/dolist/internal/app"
	"github.com/and161185/dolist/internal/config"
	"github.com/and161185/dolist/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	verbose    bool
	json       bool
	timeout    time.Duration
}

// NewRootCmd builds the dolist command tree.
func NewRootCmd(version, buildDate string) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "dolist",
		Short: "Local-first to-do lists with opportunistic cloud mirroring",
		Long: `dolist keeps your to-do lists on this device and mirrors them to the cloud
when you are signed in. Guests work fully offline.`,
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", config.DefaultPath(), "config file")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&o.json, "json", false, "print JSON")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "overall command timeout")

	root.AddCommand(
		statusCmd(o), guestCmd(o), loginCmd(o), registerCmd(o), logoutCmd(o),
		listsCmd(o), createCmd(o), showCmd(o), renameCmd(o), addTaskCmd(o),
		doneCmd(o, true), doneCmd(o, false), editTaskCmd(o), rmTaskCmd(o), rmListCmd(o),
		importCmd(o), serveCmd(o), configCmd(o), versionCmd(version, buildDate),
	)
	return root
}

// Execute runs the root command.
func Execute(version, buildDate string) error {
	if err := NewRootCmd(version, buildDate).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *options) logger() *zap.Logger {
	if o.verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			return l
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// run opens the app for the duration of fn.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	log := o.logger()
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return fn(ctx, a)
}

// withUser runs fn for the signed-in local user.
func (o *options) withUser(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, u *model.User) error) error {
	return o.run(cmd, func(ctx context.Context, a *app.App) error {
		u, err := a.Session.Current(ctx)
		if err != nil {
			return fmt.Errorf("%w (run `dolist guest` or `dolist login`)", err)
		}
		return fn(ctx, a, u)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readAll(r io.Reader, p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(r)
	}
	return os.ReadFile(p)
}

func versionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dolist %s (%s)\n", version, buildDate)
		},
	}
}
