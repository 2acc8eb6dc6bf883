// Package ui embeds the console's page templates and static assets.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
)

//go:embed templates/*.html static/*
var content embed.FS

// DevEnv, when set to 1, makes Files read from disk on each call so
// templates can be edited without rebuilding.
const DevEnv = "DKTADMIN_DEV"

// Dev reports whether templates are served from disk.
func Dev() bool {
	return os.Getenv(DevEnv) == "1"
}

// Files returns the template and asset tree rooted at this package.
func Files() fs.FS {
	if Dev() {
		return os.DirFS("internal/ui")
	}
	return content
}

// StaticHandler serves /static/* from the asset tree.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(Files(), "static")
	if err != nil {
		panic(err)
	}
	h := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	if Dev() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			h.ServeHTTP(w, r)
		})
	}
	return h
}
