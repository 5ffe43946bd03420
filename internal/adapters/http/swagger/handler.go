// Package swagger serves the API description and a ReDoc page rendering it.
package swagger

import (
	"context"
	_ "embed"
	"net/http"
)

// OpenAPI is the API description served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte

// RedocScript is where the docs page loads ReDoc from.
const RedocScript = "https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"

const docPath = "/openapi.yaml"

// Register adds GET /api-docs and GET /openapi.yaml to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}
	mux.Handle("GET /api-docs", static("text/html; charset=utf-8", []byte(redocPage)))
	mux.Handle("GET "+docPath, static("application/yaml; charset=utf-8", OpenAPI))
}

func static(contentType string, body []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		h.Set("Content-Type", contentType)
		h.Set("Cache-Control", "no-cache")
		_, _ = w.Write(body)
	})
}

const redocPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Athlete Benchmarks API</title>
</head>
<body style="margin:0">
<redoc spec-url="` + docPath + `" hide-download-button></redoc>
<script src="` + RedocScript + `"></script>
</body>
</html>`
