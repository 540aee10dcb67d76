// Package dataset persists the four flat tables a simulation exports as CSV
// files, one file per table.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"okapi/banksim-api/internal/domain"
)

// timeLayout is the timestamp format written to disk.
const timeLayout = "2006-01-02 15:04:05"

// Write saves tables under dir as transactions.csv, bank_devices.csv,
// profiles.csv and accounts.csv, creating dir if needed. It returns the
// paths written.
func Write(tables domain.Tables, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create %s: %w", dir, err)
	}

	files := []struct {
		name    string
		header  []string
		records func() [][]string
	}{
		{"transactions.csv", transactionHeader, func() [][]string { return transactionRecords(tables.Transactions) }},
		{"bank_devices.csv", deviceHeader, func() [][]string { return deviceRecords(tables.BankDevices) }},
		{"profiles.csv", profileHeader, func() [][]string { return profileRecords(tables.Profiles) }},
		{"accounts.csv", accountHeader, func() [][]string { return accountRecords(tables.Accounts) }},
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := writeCSV(path, file.header, file.records()); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	return f.Close()
}

// ─── Per-table row shaping ────────────────────────────────────────────────────

var transactionHeader = []string{
	"amount", "balance", "time", "holder", "holder_bank", "related", "related_bank",
	"latitude", "longitude", "status", "type", "category", "channel", "device",
	"reference", "reported",
}

func transactionRecords(transactions []domain.Transaction) [][]string {
	records := make([][]string, 0, len(transactions))
	for _, tx := range transactions {
		records = append(records, []string{
			formatFloat(tx.Amount),
			formatFloat(tx.Balance),
			tx.Time.Format(timeLayout),
			tx.Holder,
			tx.HolderBank,
			tx.Related,
			tx.RelatedBank,
			formatFloat(tx.Latitude),
			formatFloat(tx.Longitude),
			tx.Status,
			tx.Type,
			tx.Category,
			tx.Channel,
			tx.Device,
			tx.Reference,
			strconv.FormatBool(tx.Reported),
		})
	}
	return records
}

var deviceHeader = []string{"device_id", "bank_name", "latitude", "longitude"}

func deviceRecords(devices []domain.BankDevice) [][]string {
	records := make([][]string, 0, len(devices))
	for _, d := range devices {
		records = append(records, []string{
			d.DeviceID,
			d.BankName,
			formatFloat(d.Latitude),
			formatFloat(d.Longitude),
		})
	}
	return records
}

var profileHeader = []string{
	"user_id", "devices", "name", "gender", "email", "birthdate", "latitude", "longitude",
}

func profileRecords(profiles []domain.Profile) [][]string {
	records := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		records = append(records, []string{
			p.UserID,
			strings.Join(p.Devices, ";"),
			p.Name,
			p.Gender,
			p.Email,
			p.Birthdate,
			formatFloat(p.Latitude),
			formatFloat(p.Longitude),
		})
	}
	return records
}

var accountHeader = []string{
	"account_no", "account_name", "balance", "kyc", "bvn", "bank_name", "merchant",
	"opening_device", "latitude", "longitude", "devices", "name", "gender", "email",
	"birthdate",
}

func accountRecords(accounts []domain.AccountRow) [][]string {
	records := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, []string{
			a.AccountNo,
			a.AccountName,
			formatFloat(a.Balance),
			strconv.Itoa(a.KYC),
			a.BVN,
			a.BankName,
			strconv.FormatBool(a.Merchant),
			a.OpeningDevice,
			formatFloat(a.Latitude),
			formatFloat(a.Longitude),
			strings.Join(a.Devices, ";"),
			a.Name,
			a.Gender,
			a.Email,
			a.Birthdate,
		})
	}
	return records
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
