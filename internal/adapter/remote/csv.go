package remote

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// FileSource implements Extractor over per-variable CSV tables exported by
// a previous platform run: <dir>/<variable>.csv with columns
// block_id,year,month,value. Year and month are parsed as integers, so a
// zero-padded "01" and a bare "1" read back identically and re-exporting
// never changes the join keys.
type FileSource struct {
	dir string
}

// NewFileSource creates an extractor over a directory of exported tables.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Extract(_ context.Context, blocks []domain.Block, q Query) ([]domain.ClimateObservation, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", q.Variable, err)
	}

	path := filepath.Join(s.dir, string(q.Variable)+".csv")
	rows, err := ReadObservations(path, q.Variable)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		known[b.ID] = true
	}

	var out []domain.ClimateObservation
	for _, obs := range rows {
		if len(blocks) > 0 && !known[obs.BlockID] {
			continue
		}
		ym := YearMonth{Year: obs.Year, Month: obs.Month}
		if ym.Before(q.Start) || q.End.Before(ym) {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

// ReadObservations loads one variable table from a CSV file. Rows with
// non-integer years or months, or months outside 1-12, are rejected rather
// than coerced.
func ReadObservations(path string, variable domain.Variable) ([]domain.ClimateObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s table: %w", variable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s table: %w", variable, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s table %s is empty", variable, path)
	}

	header := records[0]
	if len(header) != 4 || header[0] != "block_id" || header[1] != "year" || header[2] != "month" || header[3] != "value" {
		return nil, fmt.Errorf("%s table %s: unexpected header %v", variable, path, header)
	}

	obs := make([]domain.ClimateObservation, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseObservation(rec, variable)
		if err != nil {
			return nil, fmt.Errorf("%s table %s row %d: %w", variable, path, i+2, err)
		}
		obs = append(obs, row)
	}
	return obs, nil
}

func parseObservation(rec []string, variable domain.Variable) (domain.ClimateObservation, error) {
	if rec[0] == "" {
		return domain.ClimateObservation{}, fmt.Errorf("empty block_id")
	}
	year, err := strconv.Atoi(rec[1])
	if err != nil {
		return domain.ClimateObservation{}, fmt.Errorf("non-integer year %q", rec[1])
	}
	month, err := strconv.Atoi(rec[2])
	if err != nil {
		return domain.ClimateObservation{}, fmt.Errorf("non-integer month %q", rec[2])
	}
	if month < 1 || month > 12 {
		return domain.ClimateObservation{}, fmt.Errorf("month out of range: %d", month)
	}
	value, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return domain.ClimateObservation{}, fmt.Errorf("invalid value %q", rec[3])
	}
	return domain.ClimateObservation{
		BlockID:  rec[0],
		Year:     year,
		Month:    month,
		Variable: variable,
		Value:    value,
	}, nil
}

// WriteObservations exports one variable table to a CSV file in the format
// ReadObservations accepts.
func WriteObservations(path string, obs []domain.ClimateObservation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create observation table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"block_id", "year", "month", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range obs {
		rec := []string{
			o.BlockID,
			strconv.Itoa(o.Year),
			strconv.Itoa(o.Month),
			strconv.FormatFloat(o.Value, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
