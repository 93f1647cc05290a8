// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Command wikiarchive ingests Wikipedia XML dumps into a partitioned
// columnar archive and searches it.
package main

import (
	"errors"
	"fmt"
	"os"
)

var logger = newLogger()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(os.Args[2:])
	case "embed":
		err = runEmbed(os.Args[2:])
	case "build-indexes":
		err = runBuildIndexes(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "wikiarchive: unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Printf("%s: %v", os.Args[1], err)
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `wikiarchive ingests Wikipedia dumps and searches the result.

Usage:
  wikiarchive ingest        download, parse, and write a dump into an archive
  wikiarchive embed         backfill embeddings for records that don't have them
  wikiarchive build-indexes rebuild title/type/id/bloom indexes from shards
  wikiarchive stats         print summary statistics for an archive
  wikiarchive serve         serve an HTTP endpoint for metrics and manifest
  wikiarchive query         run a BM25 text search against an archive

Run "wikiarchive <subcommand> -h" for subcommand flags.
`)
}
