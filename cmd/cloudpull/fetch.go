package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astremo/cloudpull/pkg/cancel"
	"github.com/astremo/cloudpull/pkg/fetch"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	url := fs.String("url", "", "Source URL (required)")
	output := fs.String("output", "", "Destination file path (required)")
	stall := fs.Duration("stall-timeout", 600*time.Second, "Abort when no data arrives for this long")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cloudpull fetch [options]

Download one URL to a local file. Cache validators are kept in a
.headers sidecar next to the destination; an unchanged remote file
results in a 304 and no body transfer.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *url == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Error: -url and -output are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	opts := fetch.Options{}
	opts.HTTP.InactivityTimeout = *stall
	session := fetch.NewSession(opts)

	tok := cancel.NewToken()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Interrupted, cancelling...")
		tok.Cancel()
	}()

	err := session.Fetch(context.Background(), *url, *output, *output+".headers", tok)
	switch {
	case errors.Is(err, cancel.ErrCancelled):
		fmt.Fprintln(os.Stderr, "Cancelled; destination file is indeterminate")
		return ExitCancelled
	case err != nil:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitTransferError
	}

	fmt.Println("Fetched", *output)
	return ExitSuccess
}
