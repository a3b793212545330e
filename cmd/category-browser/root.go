package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/category-browser/internal/config"
	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/spf13/cobra"
)

// cli carries state shared by all commands.
type cli struct {
	cfgFile string
	cfg     *config.Config
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "category-browser",
		Short:         "Browse catalogue categories page by page",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logging.Setup(logging.Config{
				Level:  cfg.Logging.LogLevel(),
				Pretty: cfg.Logging.Pretty,
				Output: cmd.ErrOrStderr(),
			})
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default ./category-browser.yaml or ~/.config/category-browser/category-browser.yaml)")
	flags.String("source", "", "catalogue backend: gutendex or opds")
	flags.String("base-url", "", "catalogue base URL")
	flags.String("user-agent", "", "User-Agent sent to the catalogue")
	flags.String("redis-addr", "", "Redis address for the response cache (empty disables caching)")
	flags.String("probe-url", "", "URL probed for network availability (empty: always available)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("pretty", false, "human readable logs")

	root.AddCommand(
		newBrowseCmd(c),
		newExportCmd(c),
		newServeCmd(c),
	)
	return root
}
