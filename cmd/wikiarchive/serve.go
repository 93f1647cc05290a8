// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/brawer/wikiarchive/internal/metrics"
)

// runServe starts an HTTP server exposing Prometheus metrics and the
// archive's manifest using bare net/http and promhttp.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "archive directory to serve")
	port := fs.Int("port", 0, "port for serving HTTP requests")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	if *port == 0 {
		*port, _ = strconv.Atoi(os.Getenv("PORT"))
	}
	if *port == 0 {
		*port = 8080
	}

	reg, promReg := metrics.New()
	_ = reg

	http.Handle("/metrics", metrics.Handler(promReg))
	http.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(*dataDir, "manifest.json"))
	})
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	logger.Printf("serving %s on port %d", *dataDir, *port)
	return http.ListenAndServe(":"+strconv.Itoa(*port), nil)
}
