package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
	"github.com/ironsheep/yail-server/internal/yail"
)

const defaultDiscoverTimeout = 3 * time.Second

func runConvert(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	mode, err := parseModeArg(c.String("mode"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	n, err := convertFile(c.Args().Get(0), c.Args().Get(1), mode)
	if err != nil {
		return cli.Exit(err, 1)
	}
	logger.Info("converted", "src", c.Args().Get(0), "dst", c.Args().Get(1), "mode", mode.String(), "bytes", n)
	return nil
}

// parseModeArg accepts the numeric mode ids plus the names used in logs.
func parseModeArg(s string) (yail.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mode8":
		return yail.Mode8, nil
	case "mode9":
		return yail.Mode9, nil
	case "vbxe":
		return yail.ModeVBXE, nil
	}
	return yail.ParseMode(s)
}

// convertFile encodes src into a YAIL packet written to dst and returns the
// packet size.
func convertFile(src, dst string, mode yail.Mode) (int64, error) {
	pix, err := imaging.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	p, err := yail.Encode(pix, mode)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", src, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := p.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", dst, err)
	}
	return n, nil
}
