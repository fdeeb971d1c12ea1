package fusion

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Baseline maps a calendar month (1-12) to its long-term-average rainfall.
// The baseline is an external reference, never derived in-pipeline.
type Baseline map[int]float64

// LoadBaseline reads the long-term-average reference table: a CSV with
// columns month,rainfall and one row per calendar month.
func LoadBaseline(path string) (Baseline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open baseline: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("baseline %s has no data rows", path)
	}
	if len(records[0]) != 2 || records[0][0] != "month" || records[0][1] != "rainfall" {
		return nil, fmt.Errorf("baseline %s: unexpected header %v", path, records[0])
	}

	b := make(Baseline, len(records)-1)
	for i, rec := range records[1:] {
		month, err := strconv.Atoi(rec[0])
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("baseline %s row %d: invalid month %q", path, i+2, rec[0])
		}
		value, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("baseline %s row %d: invalid rainfall %q", path, i+2, rec[1])
		}
		if _, dup := b[month]; dup {
			return nil, fmt.Errorf("baseline %s row %d: duplicate month %d", path, i+2, month)
		}
		b[month] = value
	}
	return b, nil
}
