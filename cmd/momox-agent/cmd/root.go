package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"momox-agent/lib/configutil"
	"momox-agent/lib/scrapers/momox"
	"momox-agent/services/report"
	scandb "momox-agent/services/scan/db"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

type Config struct {
	Isbns []string `json:"isbns"`
	// politeness delay between requests to the shop, defaults to 1.5
	DelaySeconds float64 `json:"delay_seconds"`
	// path of the sqlite file holding method memory and history
	DatabasePath string             `json:"database_path"`
	Momox        momox.ClientConfig `json:"momox"`
	// overrides for the site-shape heuristics, defaults apply when absent
	Heuristics *momox.Heuristics `json:"heuristics"`
	Smtp       report.SmtpConfig `json:"smtp"`
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "momox-agent",
	Short: "momox-agent checks a list of ISBNs against the momox buyback shop and reports day-over-day changes.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "path to the agent configuration")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func readConfig() Config {
	config, err := configutil.ReadConfig[Config](configPath)
	if err != nil {
		fatal("failed to read config", err)
	}
	if config.DelaySeconds == 0 {
		config.DelaySeconds = 1.5
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "momox-agent.db"
	}
	if (config.Momox.RenderApiUrl == "") != (config.Momox.RenderApiKey == "") {
		fatal("invalid config", fmt.Errorf("render_api_url and render_api_key must be set together"))
	}
	return config
}

func openDatabase(config Config) *sql.DB {
	database, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		fatal("failed to open database", err)
	}
	_, err = database.Exec(scandb.Schema)
	if err != nil {
		fatal("failed to apply database schema", err)
	}
	return database
}
