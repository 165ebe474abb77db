package configuration

import (
	"context"

	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

func NewFromEnv() (mimic.Config, error) {
	ctx := context.Background()
	var config mimic.Config
	err := envconfig.Process(ctx, &config)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	return config, nil
}

func NewServer(config *mimic.Config) *mimic.Server {
	resourceDir := config.ResourceDir
	if resourceDir == "" {
		resourceDir = "./resources"
	}
	return mimic.NewServer(
		mimic.WithResourceDir(resourceDir),
		mimic.WithLedgerCapacity(config.LedgerCapacity),
	)
}

// ConfigureServer builds a server from config, loads its fixtures and starts
// listening.
func ConfigureServer(config mimic.Config, recorder mimic.Recorder) (*mimic.Server, error) {
	server := NewServer(&config)
	if config.Fixtures != "" {
		if _, err := LoadFixtures(config.Fixtures, server); err != nil {
			return nil, err
		}
	}

	if err := StartServer(&config, server, recorder); err != nil {
		return nil, err
	}
	return server, nil
}
