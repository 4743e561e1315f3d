// Package web embeds the browser dev console served at "/".
package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var IndexHTML []byte

// Handler serves the console at "/" and 404s every other path.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(IndexHTML)
	})
}
