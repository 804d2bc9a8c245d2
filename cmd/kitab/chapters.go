package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/chapters"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

type chapterRow struct {
	Name      string `json:"name" yaml:"name"`
	Start     int    `json:"start" yaml:"start"`
	End       int    `json:"end" yaml:"end"`
	FirstPage int    `json:"first_page" yaml:"first_page"`
	LastPage  int    `json:"last_page" yaml:"last_page"`
	Pages     int    `json:"pages" yaml:"pages"`
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <book-id>",
	Short: "Resolve a book's chapter outline onto its stored pages",
	Long: `Resolve a book's chapter outline onto its stored pages.

Each chapter starts at the first stored page whose printed number matches
the outline and ends just before the next chapter. Chapters that cannot be
placed are omitted. The first entry always spans the whole book.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := svcctx.StoreFrom(ctx)

		book, err := st.GetBook(ctx, args[0])
		if err != nil {
			return fmt.Errorf("book %s: %w", args[0], err)
		}
		pages, err := st.Pages(ctx, book.ID)
		if err != nil {
			return fmt.Errorf("failed to load pages: %w", err)
		}

		boundaries := chapters.Resolve(book.Chapters, pages)
		rows := make([]chapterRow, 0, len(boundaries))
		for _, b := range boundaries {
			row := chapterRow{Name: b.Name, Start: b.Start, End: b.End, Pages: b.Len()}
			if covered := b.PhysicalPages(pages); len(covered) > 0 {
				row.FirstPage = covered[0]
				row.LastPage = covered[len(covered)-1]
			}
			rows = append(rows, row)
		}
		return printResult(cmd, rows)
	},
}

func init() {
	rootCmd.AddCommand(chaptersCmd)
}
