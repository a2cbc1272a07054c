// ping-heartbeat posts camera and/or lights heartbeats to the server, once
// or on an interval, standing in for the peripherals during bench tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/smart-traffic/internal/httputil"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
)

const (
	defaultCameraURL = "http://localhost:5000/api/heartbeat/camera"
	defaultLightsURL = "http://localhost:5000/api/heartbeat/lights"
)

type options struct {
	cameraURL string
	lightsURL string
	target    string
	every     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := httputil.NewStandardClient(&http.Client{Timeout: 5 * time.Second})
	os.Exit(run(ctx, os.Args[1:], client, timeutil.RealClock{}, os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ping-heartbeat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cameraURL, "camera", defaultCameraURL, "camera heartbeat URL")
	fs.StringVar(&o.lightsURL, "lights", defaultLightsURL, "lights heartbeat URL")
	fs.StringVar(&o.target, "target", "both", "camera, lights or both")
	fs.DurationVar(&o.every, "every", 0, "repeat interval; 0 sends once")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	switch o.target {
	case "camera", "lights", "both":
	default:
		return o, fmt.Errorf("invalid -target %q: want camera, lights or both", o.target)
	}
	if o.every < 0 {
		return o, fmt.Errorf("invalid -every %s", o.every)
	}
	return o, nil
}

func (o options) urls() []string {
	switch o.target {
	case "camera":
		return []string{o.cameraURL}
	case "lights":
		return []string{o.lightsURL}
	default:
		return []string{o.cameraURL, o.lightsURL}
	}
}

func run(ctx context.Context, args []string, client httputil.HTTPClient, clock timeutil.Clock, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	if err := pingAll(client, o.urls(), stdout); err != nil {
		fmt.Fprintf(stderr, "Heartbeat failed: %v\n", err)
		return 1
	}
	if o.every == 0 {
		return 0
	}

	ticker := clock.NewTicker(o.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C():
			// Keep going on failure: the server may be restarting.
			if err := pingAll(client, o.urls(), stdout); err != nil {
				fmt.Fprintf(stderr, "Heartbeat failed: %v\n", err)
			}
		}
	}
}

func pingAll(client httputil.HTTPClient, urls []string, stdout io.Writer) error {
	for _, url := range urls {
		resp, err := client.Post(url, "application/json", nil)
		if err != nil {
			return err
		}
		var ack map[string]string
		if err := httputil.DecodeResponse(resp, &ack); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
		fmt.Fprintf(stdout, "OK: %s -> status=%s time=%s\n", url, ack["status"], ack["time"])
	}
	return nil
}
