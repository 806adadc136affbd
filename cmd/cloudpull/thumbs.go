package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astremo/cloudpull/pkg/batch"
	"github.com/astremo/cloudpull/pkg/engine"
	"github.com/astremo/cloudpull/pkg/schedule"
)

func runThumbs(args []string) int {
	fs := flag.NewFlagSet("thumbs", flag.ExitOnError)

	configPath := fs.String("config", "", "YAML config file")
	endpoint := fs.String("endpoint", "", "Metadata service base URL")
	token := fs.String("token", "", "Access token")
	parent := fs.String("parent", "", "Parent node ID (required)")
	dir := fs.String("dir", "", "Thumbnail output directory")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: cloudpull thumbs [options]

Download a thumbnail for every texture under a hierarchy node,
two at a time, driving the engine's frame loop the way an
embedding host would.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *parent == "" {
		fmt.Fprintln(os.Stderr, "Error: -parent is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg := engine.Default()
	if *configPath != "" {
		loaded, err := engine.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return ExitConfigError
		}
		cfg = loaded
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *token != "" {
		cfg.Token = *token
	}
	if *dir != "" {
		cfg.TextureDir = *dir
	}

	hook := schedule.NewSimpleHook()
	eng, err := engine.Open(context.Background(), cfg, hook, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitConfigError
	}
	defer eng.Close()

	task := eng.PullThumbnails(*parent,
		func(n batch.Node) {
			fmt.Printf("  loading  %s\n", n.Name)
		},
		func(n batch.Node, file *batch.FileRef, localPath string) {
			if file == nil {
				fmt.Printf("  missing  %s\n", n.Name)
				return
			}
			fmt.Printf("  loaded   %s -> %s\n", n.Name, localPath)
		},
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Interrupted, cancelling...")
		task.Cancel()
	}()

	// Stand in for the host's frame loop: one Frame per tick until the
	// scheduler has reaped everything and deactivated itself.
	for {
		hook.Frame()
		if !hook.Contains("cloudpull.advance") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	switch task.State() {
	case schedule.StateDoneCancelled:
		fmt.Println("Cancelled")
		return ExitCancelled
	case schedule.StateDoneError:
		fmt.Fprintln(os.Stderr, "Error:", eng.View.Text)
		return ExitTransferError
	}

	fmt.Println(eng.View.Text)
	return ExitSuccess
}
