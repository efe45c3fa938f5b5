package main

// main.go implements the layercache inspector CLI: it parses command-line
// flags, fetches a diagnostics snapshot from a target process exposing a
// layercache debug endpoint, and prints it either as a formatted summary or
// raw JSON. It also supports periodic watch mode and pprof snapshot
// download. Ground: teacher's cmd/arena-cache-inspect/main.go, field names
// relabeled to match cache/metrics.go's generalized counters (hits_total,
// misses_total, evictions_total, expirations_total, promotions_total,
// shard_growth_total) instead of the teacher's arena-specific
// arena_bytes/arena_rotations_total.
//
// The target Go service is expected to expose:
//   - GET /debug/layercache/snapshot    – JSON payload, a Prometheus-style
//     dump of the counters above plus per-shard breakdowns.
//   - GET /debug/pprof/{heap,goroutine} – standard net/http/pprof handlers.
//
// The snapshot object is intentionally generic; we decode into map[string]any
// to avoid version skew between the CLI and the library it inspects.
//
// Build-time flag: `-ldflags "-X main.version=vX.Y.Z"` is set by the release
// pipeline.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var version = "dev"

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	// pprof dump takes precedence over watch/json.
	if opts.heapProfile != "" {
		if err := downloadProfile(ctx, opts.target, "heap", opts.heapProfile); err != nil {
			fatal(err)
		}
		return
	}
	if opts.goroutineProfile != "" {
		if err := downloadProfile(ctx, opts.target, "goroutine", opts.goroutineProfile); err != nil {
			fatal(err)
		}
		return
	}

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap)
}

func fetchSnapshot(ctx context.Context, base string) (map[string]any, error) {
	url := base + "/debug/layercache/snapshot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func prettyPrint(data map[string]any) error {
	fmt.Printf("Hits:        %v\n", data["hits_total"])
	fmt.Printf("Misses:      %v\n", data["misses_total"])
	fmt.Printf("Evictions:   %v\n", data["evictions_total"])
	fmt.Printf("Expirations: %v\n", data["expirations_total"])
	fmt.Printf("Promotions:  %v\n", data["promotions_total"])
	fmt.Printf("ShardGrowth: %v\n", data["shard_growth_total"])
	return nil
}

func downloadProfile(ctx context.Context, base, name, path string) error {
	url := fmt.Sprintf("%s/debug/pprof/%s", base, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return err
	}
	fmt.Printf("%s profile saved to %s\n", name, path)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "layercache-inspect:", err)
	os.Exit(1)
}
