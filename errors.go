/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Seednode/tablematch/protocol"
	"github.com/Seednode/tablematch/restaurants"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(body)
}

// writeError answers with a {"detail": ...} body.
func writeError(cfg *Config, w http.ResponseWriter, status int, detail string) (int, error) {
	return writeJSON(cfg, w, status, protocol.ErrorBody{Detail: detail})
}

// writeProviderError answers with the status and message carried by err.
func writeProviderError(cfg *Config, w http.ResponseWriter, err error) (int, error) {
	return writeError(cfg, w, restaurants.Status(err), restaurants.Message(err))
}
