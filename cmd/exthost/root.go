package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moosync/exthost/internal/app"
	"github.com/moosync/exthost/internal/config"
	"github.com/moosync/exthost/internal/logging"
)

// cli carries state shared by every command once flags are parsed.
type cli struct {
	configFile string
	envFile    string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "exthost",
		Short: "Moosync extension host",
		Long: `exthost loads Moosync extensions from a directory, runs each one in its
own sandbox and routes commands from the Moosync frontend to them.

Extensions are WebAssembly modules (and, when enabled, Lua scripts) described
by a package.json manifest.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "config file (default ./exthost.toml or the user config dir)")
	flags.StringVar(&c.envFile, "env-file", "", "dotenv file loaded before the config (default ./.env when present)")
	config.RegisterFlags(flags)

	root.AddCommand(
		newServeCmd(c),
		newListCmd(c),
		newCallCmd(c),
		newConfigCmd(c),
		newVersionCmd(),
	)
	return root
}

// load builds the configuration and the root logger.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{
		File:    c.configFile,
		EnvFile: c.envFile,
		Flags:   cmd.Flags(),
	})
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	c.cfg = cfg
	c.log = log
	if cfg.File() != "" {
		log.Debug().Str("file", cfg.File()).Msg("config loaded")
	}
	return nil
}

// newApp creates the application from the loaded configuration.
func (c *cli) newApp() (*app.Application, error) {
	return app.New(app.Options{Config: c.cfg, Logger: c.log})
}
