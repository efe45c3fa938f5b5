package main

// flags.go defines the command-line surface main.go parses. Split into its
// own file the way the teacher's cmd/arena-cache-inspect keeps flag parsing
// separate from dump/fetch logic (even though the teacher's own copy of
// this split was never checked in — this fills that gap the same way the
// rest of the CLI is grounded on it).

import (
	"flag"
	"time"
)

type options struct {
	target  string
	json    bool
	watch   bool
	interval time.Duration

	heapProfile      string
	goroutineProfile string

	version bool
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.target, "target", "http://127.0.0.1:6060", "base URL of the process exposing the layercache debug endpoint")
	flag.BoolVar(&opts.json, "json", false, "print the raw JSON snapshot instead of a formatted summary")
	flag.BoolVar(&opts.watch, "watch", false, "poll the snapshot endpoint repeatedly instead of exiting after one fetch")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "poll interval used with -watch")
	flag.StringVar(&opts.heapProfile, "heap-profile", "", "download a heap pprof profile to this path and exit")
	flag.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download a goroutine pprof profile to this path and exit")
	flag.BoolVar(&opts.version, "version", false, "print the CLI version and exit")

	flag.Parse()
	return opts
}
