package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ironsheep/yail-server/internal/logger"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Error("yail failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Name = "yail"
	app.Usage = "serve images to Atari 8-bit clients in their native graphics modes"
	app.Version = fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	app.Flags = serveFlags()
	app.Action = runServe

	app.Commands = []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the YAIL image server (default)",
			Flags:  serveFlags(),
			Action: runServe,
		},
		{
			Name:      "convert",
			Usage:     "Convert an image file into a YAIL packet file",
			ArgsUsage: "SRC DST",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "mode",
					Value: "8",
					Usage: "graphics mode: 8, 9 or vbxe",
				},
			},
			Action: runConvert,
		},
		{
			Name:  "discover",
			Usage: "List YAIL servers advertised on the local network",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "timeout",
					Value: defaultDiscoverTimeout,
					Usage: "how long to browse",
				},
			},
			Action: runDiscover,
		},
	}

	return app
}
