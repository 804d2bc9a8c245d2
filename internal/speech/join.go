package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Joiner stitches audio segments, in order, into one stream.
type Joiner interface {
	Join(ctx context.Context, segments [][]byte) ([]byte, error)
}

// ByteJoiner concatenates MP3 segments in memory. MP3 is a sequence of
// self-contained frames, so concatenation yields a playable stream.
type ByteJoiner struct {
	// StripTags drops the ID3v2 tag of every segment after the first.
	// Some players stop at a tag in the middle of a stream.
	StripTags bool
}

// Join implements Joiner.
func (j ByteJoiner) Join(ctx context.Context, segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to join")
	}
	var buf bytes.Buffer
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && j.StripTags {
			seg = seg[id3v2Len(seg):]
		}
		buf.Write(seg)
	}
	return buf.Bytes(), nil
}

// id3v2Len returns the size of a leading ID3v2 tag, or 0.
func id3v2Len(b []byte) int {
	if len(b) < 10 || string(b[:3]) != "ID3" {
		return 0
	}
	// Tag size is a 28-bit syncsafe integer.
	size := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
	n := 10 + size
	if b[5]&0x10 != 0 {
		n += 10 // footer
	}
	if n > len(b) {
		return 0
	}
	return n
}

// FFmpegJoiner concatenates segments with ffmpeg's concat demuxer. Segment
// files live in a temp directory that is removed before Join returns.
type FFmpegJoiner struct {
	// Binary defaults to "ffmpeg".
	Binary string
	// ScratchDir is the parent of the per-call temp directory; empty uses
	// the system temp dir.
	ScratchDir string
	// Ext is the segment file extension, default "mp3".
	Ext string
}

// Join implements Joiner.
func (j FFmpegJoiner) Join(ctx context.Context, segments [][]byte) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to join")
	}
	ext := j.Ext
	if ext == "" {
		ext = "mp3"
	}

	dir, err := os.MkdirTemp(j.ScratchDir, "join-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	lines := make([]string, 0, len(segments))
	for i, seg := range segments {
		path := filepath.Join(dir, fmt.Sprintf("segment_%04d.%s", i, ext))
		if err := os.WriteFile(path, seg, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write segment %d: %w", i, err)
		}
		// The concat demuxer needs single quotes escaped.
		lines = append(lines, fmt.Sprintf("file '%s'", strings.ReplaceAll(path, "'", "'\\''")))
	}

	listPath := filepath.Join(dir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create concat list: %w", err)
	}

	outputPath := filepath.Join(dir, "joined."+ext)
	cmd := exec.CommandContext(ctx, j.binary(),
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return os.ReadFile(outputPath)
}

// CheckAvailable reports whether the ffmpeg binary can be found.
func (j FFmpegJoiner) CheckAvailable() error {
	if _, err := exec.LookPath(j.binary()); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", j.binary(), err)
	}
	return nil
}

func (j FFmpegJoiner) binary() string {
	if j.Binary == "" {
		return "ffmpeg"
	}
	return j.Binary
}
