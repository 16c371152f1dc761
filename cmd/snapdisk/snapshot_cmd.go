package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapdisk/snapdisk/pkg/chunkstore"
	"github.com/snapdisk/snapdisk/pkg/diskimage"
	"github.com/snapdisk/snapdisk/pkg/endpoint"
	"github.com/snapdisk/snapdisk/pkg/metrics"
	"github.com/snapdisk/snapdisk/pkg/snapshot"
)

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	commitPeriod := fs.String("commit-period", "10Gi", "commit manifest every N bytes appended")
	name := fs.String("name", "", "snapshot name (default: current local time)")
	mode := fs.String("mode", "create", "create|resume|overwrite")
	compress := fs.String("compress", "", "\"\" or \"gz\"")
	chunkSize := fs.String("chunk-size", "256Mi", "chunk size")
	remoteBinary := fs.String("remote-snapdisk", "", "remote binary name for ssh:// sources (default: snapdisk)")
	printSI := fs.Bool("print-si-units", false, "print progress using binary size units")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Parse(args)

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: snapdisk snapshot <src> <dst> [options]")
	}
	src, dst := rest[0], rest[1]

	period, err := parseSize(*commitPeriod)
	if err != nil {
		return fmt.Errorf("--commit-period: %w", err)
	}
	chunkSz, err := parseSize(*chunkSize)
	if err != nil {
		return fmt.Errorf("--chunk-size: %w", err)
	}

	var writerMode snapshot.Mode
	switch *mode {
	case "create":
		writerMode = snapshot.Create
	case "resume":
		writerMode = snapshot.Resume
	case "overwrite":
		writerMode = snapshot.Overwrite
	default:
		return fmt.Errorf("--mode must be create, resume, or overwrite, got %q", *mode)
	}

	compression := chunkstore.CompressionNone
	if *compress == "gz" {
		compression = chunkstore.CompressionGzip
	} else if *compress != "" {
		return fmt.Errorf("--compress must be \"\" or \"gz\", got %q", *compress)
	}

	snapName := *name
	if snapName == "" {
		snapName = defaultSnapshotName(time.Now())
	}

	img, err := openImage(src, chunkSz, *remoteBinary)
	if err != nil {
		return err
	}
	defer img.Close()

	m := metrics.New()

	progress := func(w *snapshot.Writer) error {
		if err := w.Commit(); err != nil {
			return err
		}
		if *printSI {
			fmt.Printf("progress: %s / %s\n", formatSI(w.Position()), formatSI(img.DiskSize()))
		}
		return nil
	}

	writer, err := snapshot.New(img, dst, snapName, compression, writerMode, period, m, progress)
	if err != nil {
		return err
	}
	defer writer.Close()

	return writer.Run()
}

// openImage opens src as a local path, or as a remote image if src
// parses as an endpoint URI.
func openImage(src string, chunkSize int64, remoteBinary string) (diskimage.Image, error) {
	if !strings.Contains(src, "://") {
		return diskimage.Open(src, chunkSize)
	}

	spec, err := endpoint.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse source %q: %w", src, err)
	}
	if remoteBinary != "" {
		spec.RemoteBinary = remoteBinary
	}
	return diskimage.OpenRemote(background(), spec, chunkSize)
}
