// qt-faststart is a Go clone of the original qt-faststart utility written in C
// by Mike Melanson.
//
//	qt-faststart [-c config.yaml] [-co64] [-stream] [-level debug] <inFile.mov> <outFile.mov>
//
// The input may also be an http:// or https:// URL served with range request
// support, in which case only the atom headers and "moov" are downloaded up
// front and the media data is streamed straight to the output file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	qtfaststart "github.com/Fyresite/moov-faststart"
)

func main() {
	conf := flag.String("c", "", "config file")
	co64 := flag.Bool("co64", false, "upgrade every stco atom to co64")
	stream := flag.Bool("stream", false, "stream local files instead of loading them into memory")
	level := flag.String("level", "", "log level (debug, info, warn, error)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: qt-faststart [flags] <inFile.mov> <outFile.mov>")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Make sure we have the correct number of arguments
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	config, err := LoadConfig(*conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	config.ForceCo64 = config.ForceCo64 || *co64
	config.Stream = config.Stream || *stream
	if *level != "" {
		config.Log.Level = *level
	}
	logger, err := config.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := fullPath(flag.Arg(1))
	if err = run(ctx, logger, config, flag.Arg(0), out); err != nil {
		logger.Error("conversion failed", "err", err)
		os.Remove(out)
		os.Exit(1)
	}
	logger.Info("conversion complete", "out", out)
}

func run(ctx context.Context, logger *slog.Logger, config Config, in, out string) error {
	opts := qtfaststart.Options{ForceUpgradeToCo64: config.ForceCo64, Logger: logger}

	if isURL(in) {
		return convertSource(ctx, logger, &qtfaststart.HTTPSource{Client: newHTTPClient(config.HTTP.Timeout), URL: in}, out, opts)
	}

	// Open the input file
	inFile, err := os.Open(fullPath(in))
	if err != nil {
		return err
	}
	defer inFile.Close()

	if config.Stream {
		info, err := inFile.Stat()
		if err != nil {
			return err
		}
		return convertSource(ctx, logger, qtfaststart.NewReaderAtSource(inFile, info.Size()), out, opts)
	}

	// Parse the input file
	qtFile, err := qtfaststart.Read(inFile)
	if err != nil {
		return err
	}

	// Is conversion necessary?
	if qtFile.FastStartEnabled() {
		logger.Info("no conversion necessary")
	} else if err = qtFile.Convert(opts); err != nil {
		return err
	}

	// Save the converted movie to the output file
	return os.WriteFile(out, qtFile.Bytes(), 0o644)
}

func convertSource(ctx context.Context, logger *slog.Logger, src qtfaststart.Source, out string, opts qtfaststart.Options) error {
	ranges, err := qtfaststart.ScanRanges(ctx, src)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		logger.Debug("atom", "type", r.Type, "offset", r.Offset, "size", r.Size)
	}

	// Open the output file
	outFile, err := os.Create(out)
	if err != nil {
		return err
	}
	if err = qtfaststart.WriteFaststarted(ctx, src, qtfaststart.FaststartOrder(ranges), outFile, opts); err != nil {
		outFile.Close()
		return err
	}
	return nil
}

// newHTTPClient limits connecting and waiting for headers to timeout. Bodies
// carry whole mdat atoms, so reading them is bounded only by ctx.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

func fullPath(input string) string {
	if path, err := filepath.Abs(input); err == nil {
		return path
	}
	return input
}
