package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file from the embedded template at the --config path.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'spotdown spotify auth' to store a refresh token\n")
	r.writePlain("3. Pick transcoder.strategy: \"%s\" (ffmpeg) or \"%s\" (CloudConvert)\n", shared.StrategyLocal, shared.StrategyRemote)

	return nil
}

// loadedConfig returns the runner configuration after checking it can drive the pipeline.
func (r *Runner) loadedConfig() (*shared.Config, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.configPath, err)
	}
	return r.config, nil
}
