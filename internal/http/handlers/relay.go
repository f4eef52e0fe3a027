package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const defaultRelayMaxBytes = 512 << 20

// Proxy fetches ?url= and streams the bytes back with a permissive CORS
// header so the viewer can load assets hosted elsewhere.
func (a *App) Proxy(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "URL required"})
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "URL must be an absolute http(s) url"})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		a.json(w, http.StatusInternalServerError, map[string]string{"error": "Proxy failed"})
		return
	}
	client := a.RelayClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		a.log().Warn().Err(err).Str("host", target.Host).Msg("relay: fetch failed")
		a.Metrics.RelayFetched(http.StatusInternalServerError, 0)
		a.json(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.Metrics.RelayFetched(resp.StatusCode, 0)
		a.json(w, resp.StatusCode, map[string]string{"error": fmt.Sprintf("Failed to fetch: %d", resp.StatusCode)})
		return
	}

	limit := a.RelayMaxBytes
	if limit <= 0 {
		limit = defaultRelayMaxBytes
	}
	if resp.ContentLength > limit {
		a.tooLarge(w, humanize.IBytes(uint64(resp.ContentLength)), limit)
		return
	}

	// Without a declared length the body is buffered up to the cap so an
	// oversized asset is refused before any byte reaches the client.
	var body io.Reader = io.LimitReader(resp.Body, limit)
	length := resp.ContentLength
	if length < 0 {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1)); err != nil {
			a.log().Warn().Err(err).Str("host", target.Host).Msg("relay: read failed")
			a.Metrics.RelayFetched(http.StatusInternalServerError, 0)
			a.json(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if int64(buf.Len()) > limit {
			a.tooLarge(w, "more than "+humanize.IBytes(uint64(limit)), limit)
			return
		}
		body, length = &buf, int64(buf.Len())
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, body)
	a.Metrics.RelayFetched(http.StatusOK, n)
	if err != nil {
		a.log().Warn().Err(err).Str("host", target.Host).Int64("bytes", n).Msg("relay: stream interrupted")
	}
}

func (a *App) tooLarge(w http.ResponseWriter, size string, limit int64) {
	a.Metrics.RelayFetched(http.StatusRequestEntityTooLarge, 0)
	a.json(w, http.StatusRequestEntityTooLarge, map[string]string{
		"error": fmt.Sprintf("Asset too large: %s exceeds %s", size, humanize.IBytes(uint64(limit))),
	})
}
