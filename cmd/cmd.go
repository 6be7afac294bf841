// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/spotdown/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand writes a starter configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml from the bundled template",
		Action: r.Setup,
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify catalog operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authorize with Spotify once and store the refresh token",
				Action: r.SpotifyAuth,
			},
			{
				Name:      "show",
				Usage:     "Show the tracks of a track, album or playlist",
				ArgsUsage: "<url|uri|id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "ref"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (" + strings.Join(formatter.Formats, ", ") + ")",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.SpotifyShow,
			},
		},
	}
}

// downloadCommand runs the pipeline for a track or every track of a collection.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download a track, album or playlist as MP3 files",
		ArgsUsage: "<url|uri|id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "ref"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for delivered files (default: download.output_dir)",
			},
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Base URL of a spotdown server to run the pipeline on",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Spacing between batch launches (default: download.bulk_delay)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the batch result as JSON",
			},
		},
		Action: r.Download,
	}
}

// serveCommand exposes the pipeline over HTTP.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// healthCommand checks a remote server.
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that a spotdown server is reachable",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Base URL of the server (default: server.host:server.port)",
			},
		},
		Action: r.Health,
	}
}

// tuiCommand returns the top-level TUI command for interactive batch downloads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Browse a collection and download tracks interactively",
		ArgsUsage: "<url|uri|id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "ref"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Base URL of a spotdown server to run the pipeline on",
			},
		},
		Action: r.TUI,
	}
}
