// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistersDistinctRegistryPerCall(t *testing.T) {
	_, reg1 := New()
	_, reg2 := New()
	if reg1 == reg2 {
		t.Fatal("expected independent prometheus registries across calls")
	}
}

func TestHandlerServesCounters(t *testing.T) {
	r, reg := New()
	r.BytesDownloaded.Add(42)
	r.ArticlesIngested.WithLabelValues("person").Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])

	if !strings.Contains(body, "wikiarchive_bytes_downloaded_total 42") {
		t.Errorf("expected bytes_downloaded_total in output, got:\n%s", body)
	}
	if !strings.Contains(body, `wikiarchive_articles_ingested_total{type="person"} 1`) {
		t.Errorf("expected articles_ingested_total in output, got:\n%s", body)
	}
}
