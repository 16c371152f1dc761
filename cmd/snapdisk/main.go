// Command snapdisk is the CLI entry point: a thin caller over the
// snapshot, image server, and trust-store packages, following the
// teacher's manual os.Args-switch dispatch rather than a
// subcommand framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "snapshot":
		err = runSnapshot(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logrus.WithError(err).Error("snapdisk: command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`snapdisk - content-addressed, deduplicated disk-image snapshots

Usage:
  snapdisk snapshot <src> <dst> [options]
  snapdisk serve <src> [options]
  snapdisk keygen <server-file> <client-file>

Commands:
  snapshot   Take a (possibly resumed) snapshot of <src> into pool <dst>
  serve      Serve <src> to a remote snapshot client
  keygen     Generate a cross-pinned TLS server/client key pair

Run "snapdisk <command> -h" for command-specific options.
`)
}

// defaultSnapshotName returns the local-time name used when --name is
// omitted: strftime("%Y-%m-%d-%H-%M-%S").
func defaultSnapshotName(now time.Time) string {
	return now.Format("2006-01-02-15-04-05")
}

func background() context.Context {
	return context.Background()
}
