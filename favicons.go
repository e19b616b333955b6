/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	defaultAvatarSize = 160
	maxAvatarSize     = 960
)

// Each character is one pixel. H, h and d are the hair in base, neutral and
// deep shades; the rest are fixed.
var avatarSprite = []string{
	"..dddddd..",
	".dHHHHHHd.",
	"dHHHHHHHHd",
	"dHhhHHhhHd",
	"dhsssssshd",
	".sesssses.",
	".ssssssss.",
	".ssmmmmss.",
	"..ssssss..",
	"...ssss...",
	".bbbbbbbb.",
	"bbbbbbbbbb",
	"bbbbbbbbbb",
}

var avatarFixedColors = map[byte]string{
	's': "#f5c9a6",
	'e': "#222034",
	'm': "#b5544c",
	'b': "#4a6fa5",
}

func getFavicon(cfg *Config) string {
	return `<link rel="icon" type="image/svg+xml" href="` + cfg.prefix + `/favicon.svg">
	<meta name="theme-color" content="#ffffff">`
}

func renderAvatar(name string, size int) string {
	p := paletteFor(name)

	colors := map[byte]string{
		'H': p.Base,
		'h': p.Neutral,
		'd': p.Deep,
	}
	for k, v := range avatarFixedColors {
		colors[k] = v
	}

	width, height := len(avatarSprite[0]), len(avatarSprite)

	var svg strings.Builder

	svg.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges" preserveAspectRatio="xMidYMid meet">`,
		size, size*height/width, width, height))

	if name != "" {
		svg.WriteString("<title>" + html.EscapeString(name) + "</title>")
	}

	for y, row := range avatarSprite {
		for x := 0; x < len(row); x++ {
			fill, ok := colors[row[x]]
			if !ok {
				continue
			}

			svg.WriteString(fmt.Sprintf(`<rect x="%d" y="%d" width="1" height="1" fill="%s"/>`, x, y, fill))
		}
	}

	svg.WriteString("</svg>")

	return svg.String()
}

func avatarSize(r *http.Request) int {
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 {
		return defaultAvatarSize
	}

	return min(size, maxAvatarSize)
}

func writeAvatar(cfg *Config, w http.ResponseWriter, r *http.Request, name string, errs chan<- error) {
	startTime := time.Now()

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Expires", time.Now().Add(24*time.Hour).UTC().Format(http.TimeFormat))
	securityHeaders(cfg, w)

	written, err := w.Write([]byte(renderAvatar(name, avatarSize(r))))
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: Avatar for %q (%s) to %s in %s",
		name,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func serveFavicon(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeAvatar(cfg, w, r, "", errs)
	}
}

func serveAvatar(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeAvatar(cfg, w, r, strings.TrimSpace(r.URL.Query().Get("name")), errs)
	}
}

func serveAvatarPalette(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		if err := writeJSON(w, http.StatusOK, paletteFor(strings.TrimSpace(r.URL.Query().Get("name")))); err != nil {
			errs <- err
		}
	}
}
