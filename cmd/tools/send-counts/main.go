// send-counts posts one set of N E S W vehicle counts to the server and
// prints the computed timings.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/banshee-data/smart-traffic/internal/httputil"
)

const defaultURL = "http://localhost:5000/api/process_counts"

func main() {
	client := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
	os.Exit(run(os.Args[1:], client, os.Stdout, os.Stderr))
}

func run(args []string, client httputil.HTTPClient, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("send-counts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", defaultURL, "process_counts endpoint")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: send-counts [-url URL] [--] N E S W")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	counts, err := parseCounts(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return 2
	}

	var reply json.RawMessage
	if err := httputil.PostJSON(client, *url, map[string][]int{"car_counts": counts}, &reply); err != nil {
		fmt.Fprintf(stderr, "Request failed: %v\n", err)
		return 1
	}
	printJSON(stdout, reply)
	return 0
}

// parseCounts requires exactly four integers. Negative values are passed
// through so the server's validation can be exercised.
func parseCounts(args []string) ([]int, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("expected 4 counts, got %d", len(args))
	}
	counts := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q", a)
		}
		counts[i] = n
	}
	return counts, nil
}

func printJSON(w io.Writer, raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		w.Write(raw)
		fmt.Fprintln(w)
		return
	}
	buf.WriteByte('\n')
	buf.WriteTo(w)
}
