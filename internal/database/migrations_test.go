package database

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// tableDefinition returns the CREATE TABLE body for table from the initial
// migration.
func tableDefinition(t *testing.T, table string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_init.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + table + ` \((.*?)\n\);`)
	m := re.FindSubmatch(raw)
	if m == nil {
		t.Fatalf("table %s not found in migration", table)
	}
	return string(m[1])
}

func column(t *testing.T, body, name string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == name {
			return line
		}
	}
	t.Fatalf("column %s not found", name)
	return ""
}

func TestInitMigration_NotificationsAcceptUnknownTransactions(t *testing.T) {
	body := tableDefinition(t, "notifications")
	if line := column(t, body, "transaction_id"); strings.Contains(line, "REFERENCES") {
		t.Errorf("notifications.transaction_id must not reference transactions: %s", strings.TrimSpace(line))
	}
}

func TestInitMigration_MerchantTextIsUnbounded(t *testing.T) {
	body := tableDefinition(t, "transactions")
	for _, name := range []string{"merchant", "description"} {
		if line := column(t, body, name); !strings.Contains(line, "TEXT") {
			t.Errorf("transactions.%s should be TEXT: %s", name, strings.TrimSpace(line))
		}
	}
}
