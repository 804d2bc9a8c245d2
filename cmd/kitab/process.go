package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/ingest"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

type processResult struct {
	BookID string        `json:"book_id" yaml:"book_id"`
	Report ingest.Report `json:"report" yaml:"report"`
}

var processCmd = &cobra.Command{
	Use:   "process <pdf>",
	Short: "Extract a scanned PDF into the page store",
	Long: `Extract a scanned PDF page by page into the page store.

A new document first has its metadata (title, author, chapter outline)
read from a sample of its first and last pages. The book is then keyed by
its cleaned file name, so processing the same file again continues the
existing book and skips the pages already stored.

Examples:
  kitab process ./tafsir.pdf
  kitab process ./tafsir.pdf --start 20 --end 40
  kitab process ./scan-02.pdf --name "تفسير الجلالين.pdf"
  kitab process ./tafsir.pdf --book 0b7d2c3e-5f0a-4c1b-9a7e-1f2d3c4b5a69`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		proc := svcctx.ProcessorFrom(ctx)
		if proc == nil {
			return fmt.Errorf("processor not initialized")
		}

		if err := proc.CheckTools(); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		start, _ := cmd.Flags().GetInt("start")
		end, _ := cmd.Flags().GetInt("end")
		bookID, _ := cmd.Flags().GetString("book")

		id, report, err := proc.Process(ctx, ingest.Request{
			Document:    args[0],
			DisplayName: name,
			StartPage:   start,
			EndPage:     end,
			BookID:      bookID,
		})
		if report != nil {
			if perr := printResult(cmd, processResult{BookID: id, Report: *report}); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	processCmd.Flags().String("name", "", "display name used to key the book (default: the file name)")
	processCmd.Flags().Int("start", 0, "first physical page to process (default: 1)")
	processCmd.Flags().Int("end", 0, "last physical page to process (default: the last page)")
	processCmd.Flags().String("book", "", "continue an existing book by id")
	processCmd.MarkFlagsMutuallyExclusive("name", "book")

	rootCmd.AddCommand(processCmd)
}
