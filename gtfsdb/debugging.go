package gtfsdb

import "fmt"

var tableCountQueries = map[string]string{
	"import_metadata": "SELECT COUNT(*) FROM import_metadata",
	"routes":          "SELECT COUNT(*) FROM routes",
	"stop_visits":     "SELECT COUNT(*) FROM stop_visits",
	"delay_records":   "SELECT COUNT(*) FROM delay_records",
	"polling_rounds":  "SELECT COUNT(*) FROM polling_rounds",
}

// TableCounts reports row counts for the known tables that exist.
func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to query table names: %w", err)
	}

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	// Close before counting; :memory: databases have a single connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close table name rows: %w", err)
	}

	counts := make(map[string]int)
	for _, table := range tables {
		query, ok := tableCountQueries[table]
		if !ok {
			continue
		}
		var count int
		if err := c.DB.QueryRow(query).Scan(&count); err != nil {
			return nil, err
		}
		counts[table] = count
	}
	return counts, nil
}
