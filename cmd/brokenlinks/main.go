package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/will-x86/brokenlinks/checker"
	"github.com/will-x86/brokenlinks/config"
	"github.com/will-x86/brokenlinks/report"
)

func main() {
	var cli config.CLI
	parser, err := config.New(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_, err = parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := run(&cli); err != nil {
		parser.Fatalf("%v", err)
	}
}

func run(cli *config.CLI) error {
	log, err := cli.Logger(os.Stderr)
	if err != nil {
		return err
	}

	out, err := cli.Open(os.Stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := checker.Run(ctx, cli.Options(log))
	if err != nil {
		return err
	}

	if err := report.WriteLines(out.Files, snap.Files); err != nil {
		return fmt.Errorf("failed to write found files: %w", err)
	}
	if err := report.WriteLines(out.Broken, snap.BrokenURLs()); err != nil {
		return fmt.Errorf("failed to write broken links: %w", err)
	}
	if err := report.Write(out.Report, cli.Format, snap); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return out.Close()
}
