package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/form3tech-oss/mimic/internal/app/configuration"
	"github.com/form3tech-oss/mimic/internal/app/metrics"
	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var fixtures string

	cmd := &cobra.Command{
		Use:   "mimic [port] [resource-dir]",
		Short: "Programmable HTTP test double",
		Long: "mimic answers HTTP requests from registered expectations and records every request for verification.\n" +
			"Configuration is read from the environment; positional arguments override PORT and RESOURCE_DIR.",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := configuration.NewFromEnv()
			if err != nil {
				return err
			}
			if err := applyArgs(&config, args); err != nil {
				return err
			}
			if cmd.Flags().Changed("fixtures") {
				config.Fixtures = fixtures
			}
			return run(config)
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "glob of YAML or JSON fixture files to preload, e.g. 'fixtures/**/*.yaml'")
	return cmd
}

func applyArgs(config *mimic.Config, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid port '%s'", args[0])
		}
		config.Port = port
	}
	if len(args) > 1 {
		config.ResourceDir = args[1]
	}
	return nil
}

func run(config mimic.Config) error {
	if err := configuration.SetupLogging(config.LogLevel, config.LogFormat); err != nil {
		return err
	}

	log.Infof("mimic is starting on port %d with resources in %s", config.Port, config.ResourceDir)

	m := metrics.New()
	if _, err := configuration.ConfigureServer(config, m); err != nil {
		return err
	}

	if config.AdminPort != 0 {
		adminServer := configuration.ServeAdminAPI(config.AdminPort, m)
		defer func() {
			if err := adminServer.Close(); err != nil {
				log.Error(err)
			}
		}()
	}

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	configuration.ShutdownAllServers(ctx)
	return nil
}
