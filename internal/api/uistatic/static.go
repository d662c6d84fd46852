// Package uistatic serves the embedded single page question console.
package uistatic

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:app
var appFS embed.FS

// Handler serves files from the embedded app directory. Unknown paths get
// index.html so client side routes survive a reload.
func Handler() http.Handler {
	sub, err := fs.Sub(appFS, "app")
	if err != nil {
		return http.NotFoundHandler()
	}
	return handlerFS(sub)
}

func handlerFS(files fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(files))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if name == "." || name == "index.html" {
			serveIndex(w, r, files)
			return
		}
		if info, err := fs.Stat(files, name); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		serveIndex(w, r, files)
	})
}

func serveIndex(w http.ResponseWriter, r *http.Request, files fs.FS) {
	index, err := files.Open("index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = index.Close() }()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.Copy(w, index)
}
