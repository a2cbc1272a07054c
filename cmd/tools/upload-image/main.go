// upload-image sends a local JPEG to the server as the camera would and
// prints the resulting counts and timings.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/smart-traffic/internal/httputil"
)

const defaultURL = "http://localhost:5000/api/process_image"

func main() {
	client := httputil.NewStandardClient(&http.Client{Timeout: 20 * time.Second})
	os.Exit(run(os.Args[1:], client, os.Stdout, os.Stderr))
}

func run(args []string, client httputil.HTTPClient, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("upload-image", flag.ContinueOnError)
	fset.SetOutput(stderr)
	url := fset.String("url", defaultURL, "process_image endpoint")
	fset.Usage = func() {
		fmt.Fprintln(stderr, "usage: upload-image [-url URL] IMAGE")
		fset.PrintDefaults()
	}
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() != 1 {
		fset.Usage()
		return 2
	}

	req, err := newUploadRequest(*url, fset.Arg(0))
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stderr, "Image file not found")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Request failed: %v\n", err)
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "Request failed: %v\n", err)
		return 1
	}
	var reply json.RawMessage
	if err := httputil.DecodeResponse(resp, &reply); err != nil {
		fmt.Fprintf(stderr, "Request failed: %v\n", err)
		return 1
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, reply, "", "  "); err != nil {
		buf.Reset()
		buf.Write(reply)
	}
	buf.WriteByte('\n')
	buf.WriteTo(stdout)
	return 0
}

// newUploadRequest builds the multipart body with the image in the
// imageFile field.
func newUploadRequest(url, path string) (*http.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imageFile"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}
