package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitTransferError = 1
	ExitInvalidArgs   = 2
	ExitConfigError   = 3
	ExitCancelled     = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "fetch":
		return runFetch(cmdArgs)
	case "thumbs":
		return runThumbs(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: cloudpull <command> [options]

Commands:
  fetch   Download one URL to a local file with conditional-request caching
  thumbs  Download thumbnails for every texture under a hierarchy node
  help    Show this help

Run 'cloudpull <command> -h' for command options.`)
}
