package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/snapdisk/snapdisk/pkg/diskimage"
	"github.com/snapdisk/snapdisk/pkg/endpoint"
	"github.com/snapdisk/snapdisk/pkg/imageserver"
	"github.com/snapdisk/snapdisk/pkg/metrics"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	endpointURI := fs.String("endpoint", "stdout://", "endpoint URI to serve on")
	maxChunkSize := fs.String("max-chunk-size", "512Mi", "reject any requested chunk larger than this")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Parse(args)

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: snapdisk serve <src> [options]")
	}
	src := rest[0]

	maxChunk, err := parseSize(*maxChunkSize)
	if err != nil {
		return fmt.Errorf("--max-chunk-size: %w", err)
	}

	spec, err := endpoint.Parse(*endpointURI)
	if err != nil {
		return fmt.Errorf("parse --endpoint %q: %w", *endpointURI, err)
	}

	ep, err := acquireEndpoint(spec)
	if err != nil {
		return err
	}
	defer ep.Close()

	// The served image always presents defaultServeChunkSize; a client
	// that requests a different chunk size is rejected when it opens
	// the remote image.
	img, err := diskimage.Open(src, defaultServeChunkSize)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer img.Close()

	m := metrics.New()
	return imageserver.New(ep, img, maxChunk, m).Serve()
}

// defaultServeChunkSize is the fixed chunk geometry a served local
// image presents; serve has no option to change it. It matches the
// snapshot side's default --chunk-size, so a snapshot client only
// connects successfully when it keeps that default.
const defaultServeChunkSize = 256 * 1024 * 1024

func acquireEndpoint(spec *endpoint.Spec) (endpoint.Endpoint, error) {
	if spec.Scheme == endpoint.SchemeStdout {
		return endpoint.NewStdio(), nil
	}

	listener, err := endpoint.Listen(spec)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", spec.Scheme, err)
	}
	defer listener.Close()

	logrus.WithField("scheme", spec.Scheme).Info("snapdisk: waiting for a peer")
	return listener.Accept()
}
