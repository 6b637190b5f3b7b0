//go:build integration

package client_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/reqflow/client"
)

const versionURL = "https://go.dev/VERSION?m=text"

func TestIntegration_Get_RemoteText(t *testing.T) {
	c := build(t)

	resp, err := c.Get(t.Context(), versionURL)
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	if err := resp.ExpectSuccess(); err != nil {
		t.Fatalf("unexpected status: %v", err)
	}

	text, err := resp.Text()
	if err != nil {
		t.Fatalf("reading text: %v", err)
	}

	if !strings.HasPrefix(text, "go") {
		t.Errorf("expected content to start with %q, got %q", "go", text)
	}
}

func TestIntegration_Download_RemoteSmallFile(t *testing.T) {
	c := build(t)

	destPath := filepath.Join(t.TempDir(), "VERSION")

	req, err := client.Get(versionURL)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if err := c.Download(t.Context(), req, destPath); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}

	if !strings.HasPrefix(string(got), "go") {
		t.Errorf("expected content to start with %q, got %q", "go", string(got))
	}
}

func TestIntegration_Download_RemoteWithChecksum(t *testing.T) {
	c := build(t)

	req, err := client.Get(versionURL)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	// First, download the file to compute its checksum.
	firstPath := filepath.Join(t.TempDir(), "VERSION-first")
	if err := c.Download(t.Context(), req, firstPath); err != nil {
		t.Fatalf("first download failed: %v", err)
	}

	content, err := os.ReadFile(firstPath)
	if err != nil {
		t.Fatalf("reading first download: %v", err)
	}

	hash := sha256.Sum256(content)
	expChecksum := hex.EncodeToString(hash[:])

	// The request is immutable, so it can be sent again.
	secondPath := filepath.Join(t.TempDir(), "VERSION-verified")
	err = c.Download(t.Context(), req, secondPath, client.WithChecksum(sha256.New(), expChecksum))
	if err != nil {
		t.Fatalf("checksum-verified download failed: %v", err)
	}

	got, err := os.ReadFile(secondPath)
	if err != nil {
		t.Fatalf("reading verified download: %v", err)
	}

	if !bytes.Equal(got, content) {
		t.Error("verified download content differs from first download")
	}
}

func TestIntegration_Download_RemoteWithProgress(t *testing.T) {
	c := build(t)

	req, err := client.Get(versionURL)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	var transferred int64
	destPath := filepath.Join(t.TempDir(), "VERSION-progress")
	err = c.Download(t.Context(), req, destPath,
		client.WithProgressLog(),
		client.WithProgress(func(n, _ int64) { transferred = n }),
	)
	if err != nil {
		t.Fatalf("download with progress failed: %v", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatalf("stat downloaded file: %v", err)
	}

	if info.Size() != transferred {
		t.Errorf("exp progress %d, got %d", info.Size(), transferred)
	}
}

func TestIntegration_DownloadAsync_RemoteBatch(t *testing.T) {
	c := build(t)

	urls := []string{
		versionURL,
		"https://dl.google.com/go/go1.24.0.linux-amd64.tar.gz.sha256",
		"https://dl.google.com/go/go1.23.0.linux-amd64.tar.gz.sha256",
	}

	tmpDir := t.TempDir()

	req0, err := client.Get(urls[0])
	if err != nil {
		t.Fatalf("creating request 0: %v", err)
	}

	r, err := c.DownloadAsync(t.Context(), req0, filepath.Join(tmpDir, "batch-0"), client.WithBatch(2))
	if err != nil {
		t.Fatalf("starting async download 0: %v", err)
	}

	for i := 1; i < len(urls); i++ {
		req, err := client.Get(urls[i])
		if err != nil {
			t.Fatalf("creating request %d: %v", i, err)
		}

		r.Add(req, filepath.Join(tmpDir, fmt.Sprintf("batch-%d", i)))
	}

	if err := r.Wait(); err != nil {
		t.Fatalf("batch download failed: %v", err)
	}

	// Verify SHA256 checksum files are 64 hex chars (+ optional newline).
	for i := 1; i < len(urls); i++ {
		got, err := os.ReadFile(filepath.Join(tmpDir, fmt.Sprintf("batch-%d", i)))
		if err != nil {
			t.Fatalf("reading batch-%d: %v", i, err)
		}

		trimmed := strings.TrimSpace(string(got))
		if len(trimmed) != 64 {
			t.Errorf("batch-%d: expected 64 hex chars, got %d: %q", i, len(trimmed), trimmed)
		}
	}
}

func TestIntegration_Download_RemoteCancelMidDownload(t *testing.T) {
	c := build(t, client.WithTimeout(0))

	// The Go source tarball is ~30MB; enough to allow cancellation.
	req, err := client.Get("https://dl.google.com/go/go1.24.0.src.tar.gz")
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	destPath := filepath.Join(t.TempDir(), "cancel-me.tar.gz")

	ctx, cancel := context.WithCancel(t.Context())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Download(ctx, req, destPath)
	}()

	// Allow time for the download to start receiving data, then cancel.
	time.Sleep(500 * time.Millisecond)
	cancel()

	err = <-errCh
	if err == nil {
		t.Fatal("expected error after cancellation, got nil")
	}

	if !errors.Is(err, client.ErrDownloadCancelled) && !errors.Is(err, context.Canceled) {
		t.Errorf("expected ErrDownloadCancelled or context.Canceled, got: %v", err)
	}
}

func TestIntegration_Redirect_CrossHost(t *testing.T) {
	c := build(t)

	// golang.org redirects to go.dev.
	resp, err := c.Get(t.Context(), "https://golang.org/VERSION?m=text")
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}
	defer resp.Close()

	if resp.Redirects() == 0 {
		t.Skip("golang.org no longer redirects")
	}

	last := resp.Hops()[len(resp.Hops())-1]
	if last.From.Hostname() == last.To.Hostname() {
		t.Errorf("expected a cross-host hop, got %s -> %s", last.From, last.To)
	}
	if resp.URL().Hostname() != "go.dev" {
		t.Errorf("expected to land on go.dev, got %s", resp.URL())
	}
}
