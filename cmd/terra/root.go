package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/richielo/basicFusion/config"
)

// cli is the state shared by every subcommand of one invocation.
type cli struct {
	v   *viper.Viper
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), log: logrus.New()}
	config.Env(c.v)

	root := &cobra.Command{
		Use:   "terra",
		Short: "Repackage TERRA instrument granules into one file per orbit.",
		Long: `terra reads MOPITT, CERES, MODIS, ASTER and MISR granules and writes the
fields a run plan names into a single HDF5 file, optionally subset to one
orbit and unpacked to physical units.

Every plan key can be overridden by an environment variable named
TERRA_<KEY>. Set TERRA_DATA_PACK=1 to keep packed fields packed.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setLogger(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return c.setConfig()
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "run plan file (YAML, TOML or JSON)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	c.bindFlags(flags, map[string]string{
		"config":     "config",
		"log-level":  "log-level",
		"log-format": "log-format",
	})

	root.AddCommand(c.runCmd(), c.inspectCmd(), c.orbitCmd(), versionCmd())
	return root
}

// bindFlags binds each flag to its plan key. Flags only win over the plan
// and the environment when set on the command line.
func (c *cli) bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = c.v.BindPFlag(key, f)
		}
	}
}

func (c *cli) setLogger(out io.Writer) error {
	level, err := logrus.ParseLevel(c.v.GetString("log-level"))
	if err != nil {
		return err
	}
	c.log.SetLevel(level)
	c.log.SetOutput(out)
	switch f := c.v.GetString("log-format"); f {
	case "text":
		c.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		c.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", f)
	}
	return nil
}

// setConfig reads the plan file, if there is one.
func (c *cli) setConfig() error {
	if p := c.v.GetString("config"); p != "" {
		c.v.SetConfigFile(p)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("terra: problem reading plan %s: %w", p, err)
		}
	}
	return nil
}
