package cmd

import (
	"context"
	"os"
	"sort"

	"momox-agent/services/scan"
	scandb "momox-agent/services/scan/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the persisted baseline the next scan will compare against.",
	Run: func(_ *cobra.Command, _ []string) {
		runHistory()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory() {
	ctx := context.Background()
	config := readConfig()

	database := openDatabase(config)
	defer database.Close()

	history, err := scan.LoadHistory(ctx, scandb.New(database))
	if err != nil {
		fatal("failed to load history", err)
	}

	isbns := make([]string, 0, len(history))
	for isbn := range history {
		isbns = append(isbns, isbn)
	}
	sort.Strings(isbns)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ISBN", "Date", "Available", "Price", "Title"})
	for _, isbn := range isbns {
		entry := history[isbn]
		t.AppendRow(table.Row{isbn, entry.Date, entry.Available, entry.Price, entry.Title})
	}
	t.Render()
}
