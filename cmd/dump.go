package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/dbdump/dump"
	"github.com/nethalo/dbdump/internal/config"
	"github.com/nethalo/dbdump/internal/dumplog"
	"github.com/nethalo/dbdump/internal/mysqlconn"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Take a consistent logical dump of a MySQL instance",
	Long: `dump connects to a MySQL instance, acquires a consistent snapshot,
and streams schema, table, and view DDL, table data, and user grants to
chunked output files under --output, alongside a JSON manifest
describing what was written. Routines, events, and triggers are listed
in the manifest by name; their DDL is not written.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	flags := dumpCmd.Flags()
	flags.StringP("output", "o", "", "output directory (required)")
	flags.Int("threads", 0, "number of concurrent dump workers")
	flags.Int64("bytes-per-chunk", 0, "target bytes per data chunk")
	flags.Bool("row-index", false, "write a .idx sidecar of data-byte offsets beside each chunk file")
	flags.String("compression", "", "chunk compression: gzip, zstd, snappy, none")
	flags.String("dialect", "", "output row dialect: csv, tsv, json, custom")
	flags.String("charset", "", "connection charset")
	flags.Bool("utc", false, "normalize session time zone to UTC")
	flags.Bool("consistent", true, "start a consistent-snapshot transaction per worker")
	flags.Bool("dump-ddl", true, "dump schema, table, and view DDL")
	flags.Bool("dump-data", true, "dump table row data")
	flags.Bool("dump-users", false, "dump user accounts and grants")
	flags.Bool("dump-events", false, "list scheduled events in schema descriptors (event DDL is not written)")
	flags.Bool("dump-routines", false, "list stored procedures and functions in schema descriptors (routine DDL is not written)")
	flags.Bool("dump-triggers", false, "list triggers in table descriptors (trigger DDL is not written)")
	flags.String("include-schemas", "", "comma-separated schema allowlist")
	flags.String("exclude-schemas", "", "comma-separated schema denylist")
	flags.String("include-tables", "", "comma-separated table allowlist (schema.table)")
	flags.String("exclude-tables", "", "comma-separated table denylist (schema.table)")
	flags.String("include-users", "", "comma-separated user allowlist (user@host)")
	flags.String("exclude-users", "", "comma-separated user denylist (user@host)")
	flags.Int64("rate-limit", 0, "cap each worker's write throughput in bytes/sec (0 = unlimited)")
	flags.String("job-id", "", "identifier embedded in the manifest (default: generated)")

	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("threads", flags.Lookup("threads"))
	viper.BindPFlag("bytes-per-chunk", flags.Lookup("bytes-per-chunk"))
	viper.BindPFlag("row-index", flags.Lookup("row-index"))
	viper.BindPFlag("compression", flags.Lookup("compression"))
	viper.BindPFlag("dialect", flags.Lookup("dialect"))
	viper.BindPFlag("charset", flags.Lookup("charset"))
	viper.BindPFlag("utc", flags.Lookup("utc"))
	viper.BindPFlag("consistent", flags.Lookup("consistent"))
	viper.BindPFlag("dump-ddl", flags.Lookup("dump-ddl"))
	viper.BindPFlag("dump-data", flags.Lookup("dump-data"))
	viper.BindPFlag("dump-users", flags.Lookup("dump-users"))
	viper.BindPFlag("dump-events", flags.Lookup("dump-events"))
	viper.BindPFlag("dump-routines", flags.Lookup("dump-routines"))
	viper.BindPFlag("dump-triggers", flags.Lookup("dump-triggers"))
	viper.BindPFlag("include-schemas", flags.Lookup("include-schemas"))
	viper.BindPFlag("exclude-schemas", flags.Lookup("exclude-schemas"))
	viper.BindPFlag("include-tables", flags.Lookup("include-tables"))
	viper.BindPFlag("exclude-tables", flags.Lookup("exclude-tables"))
	viper.BindPFlag("include-users", flags.Lookup("include-users"))
	viper.BindPFlag("exclude-users", flags.Lookup("exclude-users"))
	viper.BindPFlag("rate-limit", flags.Lookup("rate-limit"))
	viper.BindPFlag("job-id", flags.Lookup("job-id"))
}

func runDump(cmd *cobra.Command, args []string) error {
	opts := config.LoadOptions(viper.GetViper())
	conn := config.LoadConnection(viper.GetViper())
	if rootCmd.PersistentFlags().Changed("password") && conn.Password == "" {
		conn.Password = mysqlconn.PromptPassword()
	}

	if opts.OutputURL == "" {
		return fmt.Errorf("--output is required")
	}

	logger := dumplog.New(opts.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := dump.Run(ctx, opts, conn, logger)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	fmt.Println(summary.Render())
	return nil
}
