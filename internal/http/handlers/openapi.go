package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
)

//go:embed openapi.json
var openAPISpec []byte

var (
	openAPIOnce sync.Once
	openAPIDoc  map[string]any
)

const redocHTML = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Spatia API Docs</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="/v1/openapi.json"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`

// OpenAPIJSON serves the embedded document with a servers entry pointing at
// the host the request came in on.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	openAPIOnce.Do(func() {
		_ = json.Unmarshal(openAPISpec, &openAPIDoc)
	})
	if openAPIDoc == nil {
		a.error(w, http.StatusInternalServerError, "internal", "openapi document unavailable")
		return
	}
	doc := make(map[string]any, len(openAPIDoc)+1)
	for k, v := range openAPIDoc {
		doc[k] = v
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	doc["servers"] = []map[string]string{{"url": scheme + "://" + r.Host}}
	a.json(w, http.StatusOK, doc)
}

func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(redocHTML))
}
