// Command simulate runs a bank simulation offline and writes the extracted
// tables as CSV files.
//
// Usage:
//
//	go run ./cmd/simulate [flags]
//
// Flags:
//
//	-users        number of individuals to create (default: 50)
//	-banks        number of banks to create (default: 3)
//	-period       seconds per season (default: 86400)
//	-iterations   number of seasons to simulate (default: 1)
//	-batch        events dispatched per batch (default: 20)
//	-seed         RNG seed (default: 42)
//	-fraudulence  probability weight for fraudulent behaviour (default: 0.05)
//	-out          output directory for the CSV tables (default: data)
package main

import (
	"flag"
	"log/slog"
	"os"

	"okapi/banksim-api/internal/dataset"
	"okapi/banksim-api/internal/sim"
)

func main() {
	users := flag.Int("users", 50, "number of individuals")
	banks := flag.Int("banks", 3, "number of banks")
	period := flag.Int64("period", 86400, "seconds per season")
	iterations := flag.Int64("iterations", 1, "number of seasons")
	batch := flag.Int("batch", 20, "events per batch")
	seed := flag.Int64("seed", 42, "RNG seed")
	fraudulence := flag.Float64("fraudulence", 0.05, "fraudulent behaviour weight")
	out := flag.String("out", "data", "output directory")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	simulator := sim.New(*seed)
	simulator.SetupReality(sim.Config{
		NumUsers:    *users,
		NumBanks:    *banks,
		Fraudulence: *fraudulence,
	})

	if err := simulator.Simulate(*period, *iterations, *batch, *seed); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	tables, err := simulator.ExtractData()
	if err != nil {
		slog.Error("data extraction failed", "error", err)
		os.Exit(1)
	}

	files, err := dataset.Write(tables, *out)
	if err != nil {
		slog.Error("dataset write failed", "error", err)
		os.Exit(1)
	}

	slog.Info("dataset written",
		"transactions", len(tables.Transactions),
		"profiles", len(tables.Profiles),
		"accounts", len(tables.Accounts),
		"files", len(files))
}
