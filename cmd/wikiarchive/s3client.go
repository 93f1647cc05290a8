// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// newS3Client builds a client for S3-compatible object storage from
// S3_ENDPOINT/S3_KEY/S3_SECRET.
func newS3Client() (*minio.Client, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	key := os.Getenv("S3_KEY")
	secret := os.Getenv("S3_SECRET")
	if endpoint == "" {
		return nil, fmt.Errorf("s3: S3_ENDPOINT is not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(key, secret, ""),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: creating client: %w", err)
	}
	client.SetAppInfo("wikiarchive", "0.1")
	return client, nil
}

func isS3URL(url string) bool {
	return strings.HasPrefix(url, "s3://")
}
