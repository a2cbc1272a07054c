// Package web embeds the dashboard served at "/".
package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed static/*
var staticFiles embed.FS

// DevDir is read from disk in dev mode, relative to the repository root.
const DevDir = "internal/web/static"

// Static returns the dashboard files. In dev mode they are read from
// DevDir so edits show up without a rebuild.
func Static(dev bool) (fs.FS, error) {
	if dev {
		if _, err := os.Stat(DevDir); err != nil {
			return nil, err
		}
		return os.DirFS(DevDir), nil
	}
	return fs.Sub(staticFiles, "static")
}
