package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/edu-collective-api/internal/ledger"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/config"
)

type kindTotal struct {
	Direction string `db:"direction"`
	Kind      string `db:"kind"`
	Total     int64  `db:"total"`
}

func main() {
	var (
		databaseURL     string
		ledgerBase      string
		ledgerKey       string
		asset           string
		treasuryAccount string
		tolerance       int64
		timeout         time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.StringVar(&ledgerBase, "ledger-base", os.Getenv("LEDGER_BASE_URL"), "Settlement ledger base URL")
	flag.StringVar(&ledgerKey, "ledger-key", os.Getenv("LEDGER_API_KEY"), "Settlement ledger API key")
	flag.StringVar(&asset, "asset", "EDU", "Asset code to reconcile")
	flag.StringVar(&treasuryAccount, "treasury-account", os.Getenv("ORG_TREASURY_ACCOUNT"), "Treasury account name")
	flag.Int64Var(&tolerance, "tolerance", 0, "Allowed absolute drift before exiting nonzero")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Ledger and database timeout")
	flag.Parse()

	if databaseURL == "" {
		log.Fatal("missing -database-url")
	}
	if ledgerBase == "" {
		log.Fatal("missing -ledger-base")
	}
	if treasuryAccount == "" {
		log.Fatal("missing -treasury-account")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	client := ledger.NewClient(config.LedgerConfig{
		BaseURL: ledgerBase,
		APIKey:  ledgerKey,
		Asset:   asset,
		Timeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ledgerBalance, err := client.BalanceOf(ctx, models.Account(treasuryAccount))
	if err != nil {
		log.Fatalf("failed to fetch ledger balance: %v", err)
	}

	totals, err := kindTotals(ctx, db, asset)
	if err != nil {
		log.Fatalf("failed to sum journal entries: %v", err)
	}

	var journalBalance int64
	for _, t := range totals {
		if t.Direction == string(models.EntryDirectionIn) {
			journalBalance += t.Total
		} else {
			journalBalance -= t.Total
		}
	}

	drift := ledgerBalance - journalBalance

	printReport(asset, treasuryAccount, ledgerBalance, journalBalance, drift, totals)

	if abs(drift) > tolerance {
		os.Exit(1)
	}
}

func kindTotals(ctx context.Context, db *sqlx.DB, asset string) ([]kindTotal, error) {
	const query = `SELECT direction, kind, COALESCE(SUM(amount), 0) AS total
		FROM treasury_entries WHERE asset = $1
		GROUP BY direction, kind ORDER BY direction, kind`
	var totals []kindTotal
	if err := db.SelectContext(ctx, &totals, query, asset); err != nil {
		return nil, err
	}
	return totals, nil
}

func printReport(asset, account string, ledgerBalance, journalBalance, drift int64, totals []kindTotal) {
	fmt.Println("Treasury Reconciliation Report")
	fmt.Println("==============================")
	fmt.Printf("Asset: %s | Treasury account: %s\n", asset, account)
	fmt.Println()
	for _, t := range totals {
		fmt.Printf("  %-3s %-16s %12d\n", t.Direction, t.Kind, t.Total)
	}
	fmt.Println()
	fmt.Printf("Ledger balance:  %12d\n", ledgerBalance)
	fmt.Printf("Journal implied: %12d\n", journalBalance)

	status := "OK"
	if drift != 0 {
		status = "DRIFT"
	}
	fmt.Printf("[%s] drift: %d\n", status, drift)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
