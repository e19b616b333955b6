/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidSlot is returned for room identifiers outside 1-10.
	ErrInvalidSlot = errors.New("room must be a number from 1 to 10")

	// ErrInvalidName is returned for missing or blank claimant names.
	ErrInvalidName = errors.New("name is required")

	// ErrNameTooLong is returned when a claimant name exceeds the configured limit.
	ErrNameTooLong = errors.New("name is too long")

	// ErrInvalidRequest is returned for request bodies that are not the expected JSON.
	ErrInvalidRequest = errors.New("invalid request body")

	// ErrStorage wraps any failure of the booking backend.
	ErrStorage = errors.New("storage failure")

	// ErrUnknownStore is returned when the configured backend does not exist.
	ErrUnknownStore = errors.New("unknown store")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// errorf is logged regardless of verbosity.
func errorf(format string, args ...any) {
	log.Printf("%s | ERROR: "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// statusFor maps a service error to the response code and the message the
// client is allowed to see. Anything unrecognised is an internal error.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidSlot):
		return http.StatusBadRequest, ErrInvalidSlot.Error()
	case errors.Is(err, ErrNameTooLong):
		return http.StatusBadRequest, ErrNameTooLong.Error()
	case errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest, ErrInvalidName.Error()
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, ErrInvalidRequest.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) int {
	status, message := statusFor(err)

	_ = writeJSON(w, status, errorResponse{Error: message})

	return status
}

func newPage(cfg *Config, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(cfg))
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"%s/\">%s</a></body></html>", cfg.prefix, body))

	return htmlBody.String()
}
