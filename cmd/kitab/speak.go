package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/speech"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

type speakResult struct {
	File  string        `json:"file" yaml:"file"`
	Label string        `json:"label" yaml:"label"`
	Voice string        `json:"voice" yaml:"voice"`
	Pages int           `json:"pages" yaml:"pages"`
	Stats *speech.Stats `json:"stats" yaml:"stats"`
}

var speakCmd = &cobra.Command{
	Use:   "speak <book-id>",
	Short: "Narrate stored pages to an MP3 file",
	Long: `Narrate stored pages to an MP3 file.

Page markup is reduced to plain text, split into fixed-size chunks and
synthesized chunk by chunk. A chunk that fails or times out is skipped with
a warning; the command fails only when no chunk produced audio.

Examples:
  kitab speak <book-id> --page 12
  kitab speak <book-id> --chapter "المقدمة" -f intro.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svcs := svcctx.ServicesFrom(ctx)
		if err := svcs.Narrator.CheckTools(); err != nil {
			return err
		}

		var f pageFilter
		f.Chapter, _ = cmd.Flags().GetString("chapter")
		if page, _ := cmd.Flags().GetInt("page"); page > 0 {
			f.Start, f.End = page, page
		}

		sel, err := loadSelection(ctx, svcs.Store, args[0], f)
		if err != nil {
			return err
		}

		texts := make([]string, 0, len(sel.Pages))
		for _, p := range sel.Pages {
			texts = append(texts, p.Text)
		}

		audio, stats, err := svcs.Narrator.Synthesize(ctx, strings.Join(texts, "\n"))
		if err != nil {
			return fmt.Errorf("narration failed: %w", err)
		}

		out, _ := cmd.Flags().GetString("file")
		if out == "" {
			out = defaultOutput(svcs.Home.AudioDir(), sel.Label, ".mp3")
		}
		if err := os.WriteFile(out, audio, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		return printResult(cmd, speakResult{
			File:  out,
			Label: sel.Label,
			Voice: svcs.Narrator.Voice(),
			Pages: len(sel.Pages),
			Stats: stats,
		})
	},
}

func init() {
	speakCmd.Flags().String("chapter", "", "narrate one chapter by name")
	speakCmd.Flags().Int("page", 0, "narrate one physical page")
	speakCmd.Flags().StringP("file", "f", "", "output file (default: ~/.kitab/audio/<name>.mp3)")
	speakCmd.MarkFlagsMutuallyExclusive("chapter", "page")

	rootCmd.AddCommand(speakCmd)
}
