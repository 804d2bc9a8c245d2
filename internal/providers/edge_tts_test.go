package providers

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeEdgeTTS writes a shell script that mimics edge-tts argument handling.
func fakeEdgeTTS(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "edge-tts")
	script := `#!/bin/sh
out=""
text=""
voice=""
while [ $# -gt 0 ]; do
  case "$1" in
    --write-media) out="$2"; shift 2 ;;
    --voice) voice="$2"; shift 2 ;;
    --text=*) text="${1#--text=}"; shift ;;
    *) shift ;;
  esac
done
` + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake: %v", err)
	}
	return path
}

func TestEdgeTTSSynthesize(t *testing.T) {
	bin := fakeEdgeTTS(t, `printf '%s|%s' "$voice" "$text" > "$out"`)
	scratch := t.TempDir()
	e := NewEdgeTTS(EdgeTTSConfig{Binary: bin, ScratchDir: scratch})

	audio, err := e.Synthesize(context.Background(), "-نص يبدأ بشرطة", "")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if want := EdgeTTSDefaultVoice + "|-نص يبدأ بشرطة"; string(audio) != want {
		t.Errorf("audio = %q, want %q", audio, want)
	}

	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Errorf("scratch file left behind: %v", entries)
	}
}

func TestEdgeTTSSynthesize_Failure(t *testing.T) {
	bin := fakeEdgeTTS(t, `echo "no route to host" >&2; exit 1`)
	scratch := t.TempDir()
	e := NewEdgeTTS(EdgeTTSConfig{Binary: bin, ScratchDir: scratch})

	_, err := e.Synthesize(context.Background(), "نص", "ar-SA-HamedNeural")
	if err == nil || !strings.Contains(err.Error(), "no route to host") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	entries, _ := os.ReadDir(scratch)
	if len(entries) != 0 {
		t.Errorf("scratch file left behind after failure: %v", entries)
	}
}

func TestEdgeTTSSynthesize_EmptyOutput(t *testing.T) {
	bin := fakeEdgeTTS(t, `: > "$out"`)
	e := NewEdgeTTS(EdgeTTSConfig{Binary: bin, ScratchDir: t.TempDir()})

	if _, err := e.Synthesize(context.Background(), "نص", ""); err == nil {
		t.Fatal("expected error for empty media")
	}
}

func TestEdgeTTSSynthesize_Timeout(t *testing.T) {
	bin := fakeEdgeTTS(t, `exec sleep 5`)
	e := NewEdgeTTS(EdgeTTSConfig{Binary: bin, ScratchDir: t.TempDir()})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := e.Synthesize(ctx, "نص", ""); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("subprocess was not killed on timeout")
	}
}

func TestCheckEdgeTTSAvailable(t *testing.T) {
	if err := CheckEdgeTTSAvailable("definitely-not-a-real-binary-kitab"); err == nil {
		t.Error("expected error for missing binary")
	}
	e := NewEdgeTTS(EdgeTTSConfig{Binary: "definitely-not-a-real-binary-kitab"})
	if err := e.CheckAvailable(); err == nil {
		t.Error("CheckAvailable() should use the configured binary")
	}
}
