// Command statement generates a monthly account statement from the record
// store: a text table and a running-balance PNG written to an output
// directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edinstance/aws-banking-system/internal/config"
	"github.com/edinstance/aws-banking-system/internal/logging"
	"github.com/edinstance/aws-banking-system/internal/reports"
	"github.com/edinstance/aws-banking-system/pkg/store"
	boltstore "github.com/edinstance/aws-banking-system/pkg/store/bolt"
	dynamostore "github.com/edinstance/aws-banking-system/pkg/store/dynamodb"
)

var (
	accountID = flag.String("account", "", "Account ID to generate the statement for")
	month     = flag.String("month", "", "Statement month in YYYY-MM form (default: previous month)")
	outputDir = flag.String("output", "statements", "Directory to store statement outputs")
	backend   = flag.String("backend", "", "Record store backend: dynamodb or bolt (default: STORE_BACKEND)")
	boltPath  = flag.String("bolt-path", "transactions.db", "Path to the BoltDB file for the bolt backend")
	noChart   = flag.Bool("no-chart", false, "Skip the balance chart")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("Statement", cfg.LogLevel)

	if *accountID == "" {
		log.Error("the -account flag is required")
		os.Exit(1)
	}

	year, m, err := statementMonth(*month)
	if err != nil {
		log.Error("invalid -month value", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := db.QueryByAccount(ctx, *accountID)
	if err != nil {
		log.Error("failed to load transactions", "account_id", *accountID, "error", err)
		os.Exit(1)
	}

	st := reports.Build(*accountID, year, m, records)
	if len(st.Lines) == 0 {
		log.Warn("no transactions in statement month", "account_id", *accountID, "year", year, "month", m.String())
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	base := fmt.Sprintf("%s-%04d-%02d", *accountID, year, int(m))

	tablePath := filepath.Join(*outputDir, base+".txt")
	tableFile, err := os.Create(tablePath)
	if err != nil {
		log.Error("failed to create statement file", "error", err)
		os.Exit(1)
	}
	st.WriteTable(tableFile)
	tableFile.Close()
	log.Info("wrote statement table", "path", tablePath)

	if *noChart || len(st.Lines) == 0 {
		return
	}

	chartPath := filepath.Join(*outputDir, base+".png")
	chartFile, err := os.Create(chartPath)
	if err != nil {
		log.Error("failed to create chart file", "error", err)
		os.Exit(1)
	}
	defer chartFile.Close()

	if err := st.RenderChart(chartFile); err != nil {
		log.Error("failed to render chart", "error", err)
		os.Exit(1)
	}
	log.Info("wrote balance chart", "path", chartPath)
}

// statementMonth parses YYYY-MM, defaulting to the month before now.
func statementMonth(value string) (int, time.Month, error) {
	if value == "" {
		prev := time.Now().UTC().AddDate(0, -1, 0)
		return prev.Year(), prev.Month(), nil
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	b := *backend
	if b == "" {
		b = cfg.StoreBackend
	}

	switch b {
	case "dynamodb":
		if cfg.TableName == "" {
			return nil, fmt.Errorf("TRANSACTIONS_TABLE_NAME is required for the dynamodb backend")
		}
		s, err := dynamostore.New(ctx, dynamostore.Config{
			Region:    cfg.Region,
			TableName: cfg.TableName,
			Endpoint:  cfg.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return s, s.Initialize(ctx)
	case "bolt":
		return boltstore.New(*boltPath)
	default:
		return nil, fmt.Errorf("unsupported backend %q for statements", b)
	}
}
