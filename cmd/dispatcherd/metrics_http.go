// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"net/http"

	"github.com/Aid-On/llm-queue-dispatcher/internal/dispatcher"
)

// newMetricsServer builds a read-only HTTP server exposing the
// dispatcher's operational snapshot as JSON. It is a demo introspection
// surface, not a production metrics exporter.
func newMetricsServer(addr string, d *dispatcher.Dispatcher) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics/queue", queueMetricsHandler(d))
	mux.HandleFunc("/healthz", healthzHandler)

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

func queueMetricsHandler(d *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		report, err := d.GetQueueMetrics(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
