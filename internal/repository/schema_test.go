package repository_test

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

// The mirror schema must hold full-range uint64 identifiers and amounts.
// Postgres BIGINT is signed 64-bit, so any id or amount column declared
// BIGINT would reject values at or above 2^63. This guards the migration
// file against that regression without needing a live database.
func TestInitMigration_UsesUnsignedSafeColumnTypes(t *testing.T) {
	data, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	schema := string(data)

	if re := regexp.MustCompile(`(?i)\bBIGINT\b`); re.MatchString(schema) {
		t.Errorf("schema declares BIGINT columns; uint64 values >= 2^63 would fail to insert")
	}

	for _, col := range []string{"market_id", "amount", "total_yes_amount", "total_no_amount", "vault_balance"} {
		re := regexp.MustCompile(`(?i)` + col + `\s+NUMERIC\(20,\s*0\)`)
		if !re.MatchString(schema) {
			t.Errorf("column %s is not declared NUMERIC(20, 0)", col)
		}
	}

	if !strings.Contains(schema, "PRIMARY KEY (market_id, bettor)") {
		t.Errorf("bets table lost its (market_id, bettor) primary key")
	}
}
