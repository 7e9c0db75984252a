package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tordrt/sqlimport"
	"github.com/tordrt/sqlimport/internal/config"
	"github.com/tordrt/sqlimport/internal/db"
	"github.com/tordrt/sqlimport/internal/logging"
	"github.com/tordrt/sqlimport/internal/typemap"
)

// flags that select the input and are not part of the configuration
type inputFlags struct {
	cfgFile    string
	dbURL      string
	mysqlURL   string
	sqlitePath string
	schemaName string
}

func newRootCmd() *cobra.Command {
	v := config.New()
	in := &inputFlags{}

	cmd := &cobra.Command{
		Use:   "sqlimport [script.sql | -]",
		Short: "Extract a table schema from SQL DDL",
		Long: `sqlimport reads CREATE TABLE (and optionally ALTER TABLE ... ADD CONSTRAINT)
statements from a SQL script, or introspects a PostgreSQL, MySQL or SQLite
database, and writes the tables, columns, keys and logical types it finds.
Use "-" to read the script from stdin.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, v, in)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.cfgFile, "config", "", "config file (default is sqlimport.yaml next to the binary or in the working directory)")
	flags.StringVar(&in.dbURL, "db-url", "", "PostgreSQL connection string")
	flags.StringVar(&in.mysqlURL, "mysql-url", "", "MySQL connection string")
	flags.StringVar(&in.sqlitePath, "sqlite", "", "SQLite database file path")
	flags.StringVarP(&in.schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL, DSN database for MySQL)")

	flags.StringP("output", "o", "", "Output file (default: stdout)")
	flags.StringP("output-dir", "d", "", "Output directory for multi-file output")
	flags.StringP("format", "f", "text", "Output format: text, markdown or json")
	flags.Bool("alter-table", false, "Also recognize ALTER TABLE ... ADD CONSTRAINT statements")
	flags.Bool("report", false, "Print the statement status report to stderr")
	flags.String("report-db", "", "Record the run in this SQLite report database")
	flags.Bool("fail-on-error", false, "Exit with an error when a statement fails to parse")
	flags.StringSliceP("tables", "t", nil, "Specific tables (comma-separated, optional)")
	flags.StringSlice("exclude", nil, "Tables to leave out (comma-separated)")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")

	bindings := map[string]string{
		"output":              "output",
		"output_dir":          "output-dir",
		"format":              "format",
		"include_alter_table": "alter-table",
		"report":              "report",
		"report_db":           "report-db",
		"fail_on_error":       "fail-on-error",
		"tables":              "tables",
		"exclude_tables":      "exclude",
		"log.level":           "log-level",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func run(cmd *cobra.Command, args []string, v *viper.Viper, in *inputFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := config.ReadFile(v, in.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if _, err := typemap.ParseOverrides(cfg.Types); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closeLog() }()

	if cfg.OutputDir != "" && cfg.Output != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	source, url, err := selectSource(args, in)
	if err != nil {
		return err
	}

	opts := &sqlimport.Options{
		IncludeAlterTable: cfg.IncludeAlterTable,
		TypeOverrides:     cfg.Types,
		Logger:            logger,
		Tables:            cfg.Tables,
		ExcludeTables:     cfg.ExcludeTables,
		SchemaName:        in.schemaName,
	}

	var res *sqlimport.Result
	switch {
	case url != "":
		res, err = sqlimport.ExtractDatabase(ctx, url, opts)
		if err != nil {
			return fmt.Errorf("failed to extract schema: %w", err)
		}
	case source == "-":
		res, err = sqlimport.ImportReader(cmd.InOrStdin(), opts)
	default:
		res, err = sqlimport.ImportFile(source, opts)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(cmd.OutOrStdout(), cfg, res); err != nil {
		return err
	}

	if cfg.Report {
		if err := sqlimport.WriteReport(res, cmd.ErrOrStderr()); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if cfg.ReportDB != "" {
		id, err := sqlimport.SaveRun(ctx, cfg.ReportDB, source, res)
		if err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		logger.Info("run recorded", "id", id, "database", cfg.ReportDB)
	}

	if cfg.FailOnError && res.Report.HasErrors() {
		return fmt.Errorf("%d statement(s) failed to parse", res.Report.Counts().ParsingError)
	}
	return nil
}

// selectSource returns the run label (the script path, "-" or the database
// URL without its password) and, for live databases, the database URL
func selectSource(args []string, in *inputFlags) (string, string, error) {
	count := 0
	for _, s := range []string{in.dbURL, in.mysqlURL, in.sqlitePath} {
		if s != "" {
			count++
		}
	}
	if len(args) > 0 {
		count++
	}

	if count == 0 {
		return "", "", fmt.Errorf("a script path or one of --db-url, --mysql-url, or --sqlite must be specified")
	}
	if count > 1 {
		return "", "", fmt.Errorf("only one of a script path, --db-url, --mysql-url, or --sqlite can be specified")
	}

	switch {
	case in.dbURL != "":
		return db.Redact(in.dbURL), in.dbURL, nil
	case in.mysqlURL != "":
		url := in.mysqlURL
		if !strings.HasPrefix(url, "mysql://") {
			url = "mysql://" + url
		}
		return db.Redact(url), url, nil
	case in.sqlitePath != "":
		return in.sqlitePath, "sqlite://" + in.sqlitePath, nil
	default:
		return args[0], "", nil
	}
}

func writeOutput(stdout io.Writer, cfg *config.Config, res *sqlimport.Result) error {
	if cfg.OutputDir != "" {
		if err := sqlimport.FormatResult(res, &sqlimport.OutputOptions{OutputDir: cfg.OutputDir, Format: cfg.Format}); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}

	writer := stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	if err := sqlimport.FormatResult(res, &sqlimport.OutputOptions{Writer: writer, Format: cfg.Format}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
