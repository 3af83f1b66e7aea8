//go:build linux

// Package main provides the freetracer-helperd entrypoint: the
// privileged helper daemon that serves unmount and write requests over
// an authenticated unix socket.
//
// Usage:
//
//	freetracer-helperd serve [options]
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/freetracer/auth"
	"github.com/justapithecus/freetracer/cli/config"
	"github.com/justapithecus/freetracer/helperd"
	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

func main() {
	app := &cli.App{
		Name:    "freetracer-helperd",
		Usage:   "Privileged helper daemon for freetracer",
		Version: types.Version,
		Commands: []*cli.Command{
			serveCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the helper protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "socket",
				Usage: "Unix socket path to listen on",
				Value: config.DefaultSocketPath,
			},
			&cli.StringFlag{
				Name:     "client-digest",
				Usage:    "SHA-256 digest of the only acceptable client binary",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "client-identifier",
				Usage: "Expected client executable name",
				Value: "freetracer",
			},
			&cli.StringFlag{
				Name:  "client-authority",
				Usage: "Directory the client must be installed in",
				Value: "/usr/bin",
			},
			&cli.UintFlag{
				Name:     "session-uid",
				Usage:    "UID of the interactive session owner",
				Required: true,
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	logger := log.NewLogger("helperd")
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector("helperd")
	guard := auth.NewGuard(auth.Expected{
		Digest:     c.String("client-digest"),
		Identifier: c.String("client-identifier"),
		Authority:  c.String("client-authority"),
		SessionUID: uint32(c.Uint("session-uid")),
	}, auth.NewPeerCredentialSource(), logger.Named("auth"), collector)

	unmounter, err := helperd.NewUDisksUnmounter(logger.Named("udisks"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot reach UDisks2: %v", err), 1)
	}
	defer func() { _ = unmounter.Close() }()

	daemon := helperd.New(
		helperd.Config{SocketPath: c.String("socket")},
		guard,
		unmounter,
		&helperd.BlockWriter{Logger: logger.Named("writer")},
		logger,
		collector,
	)

	if err := daemon.Start(); err != nil {
		return cli.Exit(fmt.Sprintf("cannot start daemon: %v", err), 1)
	}
	logger.Info("serving", map[string]any{
		"socket": c.String("socket"),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down", nil)
	return daemon.Stop()
}
