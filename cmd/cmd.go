// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// themeFlags selects the watch list and theme groups; shared by every command that reads themes.
func themeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "status",
			Aliases: []string{"s"},
			Usage:   "Watch list statuses to include (watching, completed, on_hold, dropped, plan_to_watch); all when omitted",
		},
		&cli.BoolFlag{
			Name:  "openings",
			Usage: "Include opening themes",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "endings",
			Usage: "Include ending themes",
			Value: true,
		},
	}
}

func playlistFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "Playlist name (defaults to playlist.default_name)",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "Playlist description (defaults to playlist.default_description)",
		},
		&cli.BoolFlag{
			Name:  "public",
			Usage: "Make the playlist public",
		},
		&cli.BoolFlag{
			Name:  "collaborative",
			Usage: "Make the playlist collaborative (always private)",
		},
		&cli.StringFlag{
			Name:  "cover",
			Usage: "Path to a JPEG cover image",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func usernameArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "username"}}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config file from the bundled template",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:   "whoami",
				Usage:  "Show the authenticated Spotify user",
				Action: r.SpotifyWhoami,
			},
			{
				Name:  "playlist",
				Usage: "Show a playlist by link, URI or id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "link"},
				},
				Flags:  outputFlags(),
				Action: r.SpotifyPlaylist,
			},
		},
	}
}

// themesCommand lists the parsed theme songs of a watch list.
func themesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "themes",
		Usage:     "List the opening & ending songs of a MyAnimeList watch list",
		Arguments: usernameArg(),
		Flags: concat(themeFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, csv, markdown, text or json",
				Value:   "table",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the export to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:    "unique",
				Aliases: []string{"u"},
				Usage:   "List songs shared by several anime only once",
			},
		}),
		Action: r.Themes,
	}
}

// parseCommand runs the theme parser on raw annotations.
func parseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Parse MyAnimeList theme annotations into title & artist",
		Arguments: []cli.Argument{
			&cli.StringArgs{Name: "text", Min: 1, Max: -1},
		},
		Flags:  outputFlags(),
		Action: r.Parse,
	}
}

// generateCommand creates a playlist from a watch list.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Aliases:   []string{"gen"},
		Usage:     "Create a Spotify playlist from a watch list's theme songs",
		Arguments: usernameArg(),
		Flags: concat(themeFlags(), playlistFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "export",
				Usage: "Also write the collected songs and result: a directory for markdown, a base filename for csv",
			},
			&cli.StringFlag{
				Name:  "export-format",
				Usage: "Export format: markdown or csv",
				Value: "markdown",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		}),
		Action: r.Generate,
	}
}

// updateCommand appends a watch list's songs to an existing playlist.
func updateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Add a watch list's missing theme songs to an existing playlist",
		Arguments: usernameArg(),
		Flags: concat(themeFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist link, URI or id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		}),
		Action: r.Update,
	}
}

// serveCommand runs the web application.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web application",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			&cli.StringFlag{
				Name:  "session-backend",
				Usage: "Session store: sqlite or redis (defaults to session.backend)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist building.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Browse a watch list's themes and build a playlist interactively",
		Arguments: usernameArg(),
		Flags: concat(themeFlags(), playlistFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Update this playlist instead of creating one",
			},
		}),
		Action: r.TUI,
	}
}
