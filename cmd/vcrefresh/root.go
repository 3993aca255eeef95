package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dannyswat/vcrefresh"
	"github.com/dannyswat/vcrefresh/internal/config"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type app struct {
	v          *viper.Viper
	cfg        *config.Config
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	root := &cobra.Command{
		Use:          "vcrefresh",
		Short:        "Compute incremental refreshes between annotated HTML renders",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.verbose {
				vcrefresh.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
					&slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./vcrefresh.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log engine decisions to stderr")
	root.PersistentFlags().Bool("ignore-whitespace", false, "ignore whitespace-only fragments in plain regions")
	root.PersistentFlags().String("stats", config.StatsNone, "print walk statistics to stderr: yaml, json or none")
	_ = a.v.BindPFlag(config.KeyIgnoreWhitespace, root.PersistentFlags().Lookup("ignore-whitespace"))
	_ = a.v.BindPFlag(config.KeyStats, root.PersistentFlags().Lookup("stats"))

	root.AddCommand(a.diffCmd(), a.renderCmd())
	return root
}

func (a *app) diffCmd() *cobra.Command {
	var prevPath, curPath string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Write the refresh from --prev to --cur",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prev, err := a.load(prevPath)
			if err != nil {
				return err
			}
			cur, err := a.load(curPath)
			if err != nil {
				return err
			}
			e := vcrefresh.NewEngine(a.cfg.EngineOptions()...)
			stats, err := e.WriteTo(cmd.OutOrStdout(), cur, prev)
			if err != nil {
				return err
			}
			return a.printStats(cmd.ErrOrStderr(), stats)
		},
	}
	cmd.Flags().StringVar(&prevPath, "prev", "", "previous render")
	cmd.Flags().StringVar(&curPath, "cur", "", "current render")
	cmd.Flags().Int("threshold", vcrefresh.DefaultReplaceAllThreshold, "row changes above which a scope is replaced")
	cmd.Flags().String("encoding", config.EncodingScript, "instruction encoding: script or jsonl")
	cmd.Flags().String("namespace", vcrefresh.DefaultScriptNamespace, "client object for script instructions")
	_ = cmd.MarkFlagRequired("prev")
	_ = cmd.MarkFlagRequired("cur")
	_ = a.v.BindPFlag(config.KeyThreshold, cmd.Flags().Lookup("threshold"))
	_ = a.v.BindPFlag(config.KeyEncoding, cmd.Flags().Lookup("encoding"))
	_ = a.v.BindPFlag(config.KeyNamespace, cmd.Flags().Lookup("namespace"))
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var curPath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write --cur in full",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.load(curPath)
			if err != nil {
				return err
			}
			stats, err := vcrefresh.NewEngine().RenderAll(cmd.OutOrStdout(), cur, cur.Root())
			if err != nil {
				return err
			}
			return a.printStats(cmd.ErrOrStderr(), stats)
		},
	}
	cmd.Flags().StringVar(&curPath, "cur", "", "render to write")
	_ = cmd.MarkFlagRequired("cur")
	return cmd
}

func (a *app) load(path string) (*vcrefresh.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := vcrefresh.BuildFromHTML(f, a.cfg.BuildOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (a *app) printStats(w io.Writer, stats vcrefresh.Stats) error {
	switch a.cfg.Output.Stats {
	case config.StatsYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(stats); err != nil {
			return err
		}
		return enc.Close()
	case config.StatsJSON:
		return json.NewEncoder(w).Encode(stats)
	}
	return nil
}
