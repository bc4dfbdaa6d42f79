package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ytget/yt-relay/internal/config"
	"github.com/ytget/yt-relay/internal/model"
)

// Version is set during build via -ldflags "-X github.com/ytget/yt-relay/internal/app.Version=X.Y.Z"
var Version = "dev"

const configFlag = "config"

// NewCLI returns the yt-relay command line
func NewCLI() *cli.App {
	return &cli.App{
		Name:    "yt-relay",
		Usage:   "download media from links sent to a chat bot and relay it back in parts",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "path of the YAML configuration file",
				EnvVars: []string{config.ConfigFileEnv},
			},
		},
		Action: runAction,
		Commands: []*cli.Command{{
			Name:   "run",
			Usage:  "serve the bot and the status API",
			Action: runAction,
		}, {
			Name:      "formats",
			Usage:     "print the format menu of a URL",
			ArgsUsage: "<url>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "print the catalog as JSON"},
			},
			Action: formatsAction,
		}},
	}
}

// Main runs the command line until it returns or a termination signal arrives
func Main(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return NewCLI().RunContext(ctx, args)
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag))
	if err != nil {
		return err
	}
	logger := NewLogger(cfg, os.Stderr)
	logger.Info("yt-relay starting", "version", Version)

	a, err := New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	return a.Run(c.Context)
}

func formatsAction(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return errors.New("formats: missing <url> argument")
	}
	cfg, err := config.Load(c.String(configFlag))
	if err != nil {
		return err
	}
	logger := NewLogger(cfg, os.Stderr)

	res, err := NewCatalog(cfg, logger).ListFormats(c.Context, url)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printCatalog(c.App.Writer, res)
}

func printCatalog(w io.Writer, res *model.CatalogResult) error {
	fmt.Fprintf(w, "%s\nUploader: %s\n\n", res.Title, res.Uploader)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSIZE\tDESCRIPTION")
	for _, f := range res.Formats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.FormatID, f.Kind(), f.HumanSize, f.Description)
	}
	return tw.Flush()
}
