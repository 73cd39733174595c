package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hprofdecode/internal/consumer/columnar"
	"github.com/hprofdecode/internal/consumer/count"
	"github.com/hprofdecode/internal/consumer/graph"
	"github.com/hprofdecode/internal/consumer/print"
	"github.com/hprofdecode/internal/hprof"
	"github.com/hprofdecode/pkg/config"
	apperrors "github.com/hprofdecode/pkg/errors"
	"github.com/hprofdecode/pkg/filter"
	"github.com/hprofdecode/pkg/telemetry"
	"github.com/hprofdecode/pkg/writer"
)

var (
	consumerKind      string
	idSizeOverride    int
	noStrictFrameLen  bool
	classFilterPrefix string
	summaryAsJSON     string

	dbType     string
	dbHost     string
	dbPort     int
	dbName     string
	dbUser     string
	dbPassword string
	dbMaxConns int

	uploadArtifact bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode an HPROF heap dump and drive a consumer over its records",
	Long: `decode streams a binary HPROF heap dump file once, dispatching each
decoded record to the chosen consumer:

  count    - tally records by kind (default)
  print    - log header, string, class, heap-dump and array records
  columnar - export records into a GORM-backed database
  graph    - build a reference graph and compute retained sizes`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&consumerKind, "consumer", "", "Consumer: count, print, columnar, graph (default from config, else count)")
	decodeCmd.Flags().IntVar(&idSizeOverride, "id-size-override", 0, "Force identifier width instead of trusting the stream header (diagnostic only)")
	decodeCmd.Flags().BoolVar(&noStrictFrameLen, "no-strict-frame-length", false, "On a top-level frame-length mismatch, continue after the frame's declared end instead of failing; nothing is logged (diagnostic only)")
	decodeCmd.Flags().StringVar(&classFilterPrefix, "class-filter", "", "Comma-separated business package prefixes to restrict columnar/graph consumers to")
	decodeCmd.Flags().StringVar(&summaryAsJSON, "summary-json", "", "Write the count consumer's summary as JSON to this path")

	decodeCmd.Flags().StringVar(&dbType, "db-type", "", "Columnar consumer database type: sqlite, postgres, mysql, or none for the gzipped flat-file fallback")
	decodeCmd.Flags().StringVar(&dbHost, "db-host", "", "Columnar consumer database host")
	decodeCmd.Flags().IntVar(&dbPort, "db-port", 0, "Columnar consumer database port")
	decodeCmd.Flags().StringVar(&dbName, "db-name", "", "Columnar consumer database name or sqlite file path")
	decodeCmd.Flags().StringVar(&dbUser, "db-user", "", "Columnar consumer database user")
	decodeCmd.Flags().StringVar(&dbPassword, "db-password", "", "Columnar consumer database password")
	decodeCmd.Flags().IntVar(&dbMaxConns, "db-max-conns", 0, "Columnar consumer max open connections")
	decodeCmd.Flags().BoolVar(&uploadArtifact, "upload-artifact", false, "Upload a row-count manifest through the configured storage backend after the columnar export flushes")
}

func runDecode(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	inputPath := args[0]

	cfg, err := config.Load(configFile)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to load config", err)
	}
	applyFlagOverrides(cfg)

	info, err := os.Stat(inputPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to stat input file", err)
	}
	if info.Size() == 0 {
		return apperrors.ErrEmptyFile
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to open input file", err)
	}
	defer f.Close()

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to initialize telemetry", err)
	}
	defer shutdownTelemetry(ctx)

	handler, cleanup, err := buildConsumer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	dec := hprof.NewDecoder(f, handler)
	if cfg.Decode.IDSizeOverride > 0 {
		dec.SetIDSizeOverride(cfg.Decode.IDSizeOverride)
	}
	if !cfg.Decode.StrictFrameLength {
		dec.SetLenientFrameLength(true)
	}

	log.Info("decoding %s with consumer %q", inputPath, cfg.Consumer.Kind)

	if err := dec.Run(ctx); err != nil {
		return classifyDecodeError(err, log)
	}

	log.Info("decode complete")

	if c, ok := handler.(*count.Consumer); ok && cfg.Consumer.SummaryAsJSON {
		path := summaryAsJSON
		if path == "" {
			path = "summary.json"
		}
		if err := writer.NewPrettyJSONWriter[count.Summary]().WriteToFile(c.Summary(), path); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		log.Info("summary written to %s", path)
	}

	if c, ok := handler.(*columnar.Consumer); ok {
		if err := c.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush columnar export: %w", err)
		}
		log.Info("columnar export flushed")

		if cfg.Consumer.UploadArtifact {
			url, err := c.UploadArtifact(ctx, &cfg.Storage)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeUploadError, "failed to upload export artifact", err)
			}
			log.Info("export manifest uploaded to %s", url)
		}
	}

	if g, ok := handler.(*graph.Consumer); ok {
		result := g.Finish()
		log.Info("graph: %d objects, %d unreachable", len(result.Dominators), len(result.Unreachable))
	}

	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if consumerKind != "" {
		cfg.Consumer.Kind = consumerKind
	}
	if idSizeOverride != 0 {
		cfg.Decode.IDSizeOverride = idSizeOverride
	}
	if noStrictFrameLen {
		cfg.Decode.StrictFrameLength = false
	}
	if classFilterPrefix != "" {
		cfg.Consumer.ClassFilter = classFilterPrefix
	}
	if summaryAsJSON != "" {
		cfg.Consumer.SummaryAsJSON = true
	}
	if uploadArtifact {
		cfg.Consumer.UploadArtifact = true
	}
	if dbType != "" {
		cfg.Database.Type = dbType
	}
	if dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort != 0 {
		cfg.Database.Port = dbPort
	}
	if dbName != "" {
		cfg.Database.Database = dbName
	}
	if dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if dbMaxConns != 0 {
		cfg.Database.MaxConns = dbMaxConns
	}
}

func buildClassFilter(cfg *config.Config) *filter.ClassFilter {
	if cfg.Consumer.ClassFilter == "" {
		return nil
	}
	cf := filter.NewClassFilter()
	cf.AddBusinessPrefixes(strings.Split(cfg.Consumer.ClassFilter, ","))
	return cf
}

// buildConsumer returns the Handler selected by cfg.Consumer.Kind along
// with a cleanup function that must run after the decode completes
// (closing any database connection the consumer opened).
func buildConsumer(cfg *config.Config) (hprof.Handler, func(), error) {
	noop := func() {}

	switch cfg.Consumer.Kind {
	case "", "count":
		return count.New(), noop, nil
	case "print":
		return print.New(GetLogger()), noop, nil
	case "columnar":
		if columnar.DBType(cfg.Database.Type) == columnar.DBTypeNone {
			consumer := columnar.New(nil, columnar.Config{
				ClassFilterPrefixes: splitNonEmpty(cfg.Consumer.ClassFilter),
				FlatFileDir:         cfg.Storage.LocalPath,
			})
			return consumer, noop, nil
		}
		db, err := columnar.OpenDB(&cfg.Database)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open database", err)
		}
		if err := columnar.Migrate(db); err != nil {
			return nil, noop, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate database", err)
		}
		consumer := columnar.New(db, columnar.Config{
			ClassFilterPrefixes: splitNonEmpty(cfg.Consumer.ClassFilter),
		})
		cleanup := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return consumer, cleanup, nil
	case "graph":
		return graph.New(buildClassFilter(cfg)), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown consumer kind: %s", cfg.Consumer.Kind)
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// classifyDecodeError maps the decoder's error taxonomy onto a diagnostic
// message and a pkg/errors.CodeDecodeError-coded error, per the
// truncated-stream/format-error/handler-abort distinction the core reports.
func classifyDecodeError(err error, log interface{ Error(string, ...interface{}) }) error {
	var msg string
	switch {
	case hprof.IsTruncated(err):
		msg = "stream ended unexpectedly"
	case hprof.IsFormatError(err):
		msg = "malformed stream"
	case hprof.IsHandlerAbort(err):
		msg = "consumer aborted decoding"
	default:
		msg = "decode failed"
	}
	log.Error("%s: %v", msg, err)
	return apperrors.Wrap(apperrors.CodeDecodeError, msg, err)
}
