// Package viewer serves the embedded telemetry dashboard. The dashboard is a
// single static page that talks to the /v1 API from the browser.
package viewer

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// Handler returns an http.Handler that serves the dashboard assets. Mount it
// under a prefix, e.g. mux.PathPrefix("/viewer/").
func Handler(prefix string) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// embed contents are fixed at build time
		panic(err)
	}
	return http.StripPrefix(prefix, http.FileServer(http.FS(sub)))
}
