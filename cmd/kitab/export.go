package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/export"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

type exportResult struct {
	File  string `json:"file" yaml:"file"`
	Label string `json:"label" yaml:"label"`
	Pages int    `json:"pages" yaml:"pages"`
}

var exportCmd = &cobra.Command{
	Use:   "export <book-id>",
	Short: "Export stored pages to a DOCX document",
	Long: `Export stored pages to a right-to-left DOCX document.

By default the whole book is exported under its title. Use --chapter to
export one resolved chapter, or --start/--end for a physical page range.

Examples:
  kitab export <book-id>
  kitab export <book-id> --chapter "سورة البقرة" -f baqara.docx
  kitab export <book-id> --start 10 --end 25`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svcs := svcctx.ServicesFrom(ctx)

		var f pageFilter
		f.Chapter, _ = cmd.Flags().GetString("chapter")
		f.Start, _ = cmd.Flags().GetInt("start")
		f.End, _ = cmd.Flags().GetInt("end")

		sel, err := loadSelection(ctx, svcs.Store, args[0], f)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("file")
		if out == "" {
			out = defaultOutput(svcs.Home.ExportsDir(), sel.Label, ".docx")
		}

		cfg := svcs.Config.Get()
		opts := export.Options{
			Font:   cfg.Export.Font,
			SizePt: cfg.Export.SizePt,
			Logger: svcs.Logger,
		}
		if f == (pageFilter{}) {
			opts.Title = sel.Label
		}

		if err := writeDOCX(out, sel, opts); err != nil {
			return err
		}
		svcs.Logger.Info("exported", "book_id", sel.Book.ID, "file", out, "pages", len(sel.Pages))
		return printResult(cmd, exportResult{File: out, Label: sel.Label, Pages: len(sel.Pages)})
	},
}

func writeDOCX(path string, sel *selection, opts export.Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := export.DOCX(f, sel.Pages, opts); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	return nil
}

func init() {
	exportCmd.Flags().String("chapter", "", "export one chapter by name")
	exportCmd.Flags().Int("start", 0, "first physical page")
	exportCmd.Flags().Int("end", 0, "last physical page")
	exportCmd.Flags().StringP("file", "f", "", "output file (default: ~/.kitab/exports/<name>.docx)")
	exportCmd.MarkFlagsMutuallyExclusive("chapter", "start")
	exportCmd.MarkFlagsMutuallyExclusive("chapter", "end")

	rootCmd.AddCommand(exportCmd)
}
