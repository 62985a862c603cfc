package report

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dupctl/dupctl/models"
)

func fakeGenerator(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake generator script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-report-gen")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestGenerateParsesManifest(t *testing.T) {
	bin := fakeGenerator(t, `echo '{"artifacts":[{"path":"/tmp/report.md","format":"markdown"}]}'`)
	c := New(bin, time.Second)

	artifacts, err := c.Generate(context.Background(), &models.ScanResult{RepoPath: "/r"}, t.TempDir())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	require.Equal(t, "markdown", artifacts[0].Format)
}

func TestGenerateSurfacesSubprocessFailure(t *testing.T) {
	bin := fakeGenerator(t, `echo "boom" >&2; exit 1`)
	c := New(bin, time.Second)

	_, err := c.Generate(context.Background(), &models.ScanResult{RepoPath: "/r"}, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestGenerateRejectsMissingBinary(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist"), time.Second)
	_, err := c.Generate(context.Background(), &models.ScanResult{}, t.TempDir())
	require.Error(t, err)
}
