// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"log"
	"os"
)

// newLogger returns the package-level logger shared by every
// subcommand; it writes to stderr so stdout stays free for piped
// output (stats, query results).
func newLogger() *log.Logger {
	return log.New(os.Stderr, "wikiarchive: ", log.LstdFlags)
}
