package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"raptorfleet/internal/domain/blob"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("data", "", "")
	cmd.Flags().String("devices", "", "")
	cmd.Flags().String("at", "", "")
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

func TestPayloadFlagTagsEncoding(t *testing.T) {
	cmd := newFlagCommand(t, "--data", `{"v":1}`)
	p, err := payloadFlag(cmd, "data")
	if err != nil {
		t.Fatalf("payloadFlag() error = %v", err)
	}
	if p.Encoding != blob.EncodingJSON || p.String() != `{"v":1}` {
		t.Fatalf("payload = %+v", p)
	}

	cmd = newFlagCommand(t, "--data", "plain words")
	p, err = payloadFlag(cmd, "data")
	if err != nil {
		t.Fatalf("payloadFlag() error = %v", err)
	}
	if p.Encoding != blob.EncodingText || p.String() != "plain words" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestPayloadFlagReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte("[1, 2]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newFlagCommand(t, "--data", "@"+path)
	p, err := payloadFlag(cmd, "data")
	if err != nil {
		t.Fatalf("payloadFlag() error = %v", err)
	}
	if p.String() != "[1, 2]\n" {
		t.Fatalf("payload = %q, want file contents verbatim", p.String())
	}

	cmd = newFlagCommand(t, "--data", "@"+filepath.Join(t.TempDir(), "missing.json"))
	if _, err := payloadFlag(cmd, "data"); err == nil {
		t.Fatalf("payloadFlag() error = nil, want missing file error")
	}
}

func TestOptionalFlagsStayNilWhenUnset(t *testing.T) {
	cmd := newFlagCommand(t)
	p, err := optionalPayloadFlag(cmd, "devices")
	if err != nil || p != nil {
		t.Fatalf("optionalPayloadFlag() = %v, %v; want nil, nil", p, err)
	}
	at, err := timeFlag(cmd, "at")
	if err != nil || at != nil {
		t.Fatalf("timeFlag() = %v, %v; want nil, nil", at, err)
	}

	cmd = newFlagCommand(t, "--at", "yesterday")
	if _, err := timeFlag(cmd, "at"); err == nil {
		t.Fatalf("timeFlag() error = nil, want parse error")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Fatalf("parseID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"0", "-1", "abc"} {
		if _, err := parseID(raw); err == nil {
			t.Fatalf("parseID(%q) error = nil", raw)
		}
	}
}

func TestRenderFieldsAlignsLabels(t *testing.T) {
	var out bytes.Buffer
	if err := renderFields(&out, [][2]string{{"id", "7"}, {"raptor_id", "abc"}}); err != nil {
		t.Fatalf("renderFields() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasSuffix(lines[0], " 7") || !strings.HasSuffix(lines[1], " abc") {
		t.Fatalf("lines = %q", lines)
	}
	if strings.Index(lines[0], "7") != strings.Index(lines[1], "abc") {
		t.Fatalf("values not aligned: %q", lines)
	}
}

func TestRenderTableEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := renderTable(&out, []string{"ID"}, nil); err != nil {
		t.Fatalf("renderTable() error = %v", err)
	}
	if !strings.Contains(out.String(), "(none)") {
		t.Fatalf("output = %q", out.String())
	}
}
