package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leased.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestCheckConfig(t *testing.T) {
	path := writeConfig(t, `
server_ip: 192.168.1.1
pool:
  start: 192.168.1.100
  end: 192.168.1.200
lease_time: 6h
`)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"check-config", "--config", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-config: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"server_ip:       192.168.1.1",
		"pool:            192.168.1.100 - 192.168.1.200",
		"lease_time:      6h0m0s",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCheckConfigRejectsBadFile(t *testing.T) {
	path := writeConfig(t, `
pool:
  start: 192.168.1.200
  end: 192.168.1.100
`)

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"check-config", "--config", path})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for inverted pool")
	}
}
