// Package csvsource reads stops from CSV exports.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"routeopt/internal/model"
)

// Adapter parses rows of lat,lng[,demand[,window_start,window_end]]. A header
// row is detected by a non-numeric first cell and skipped. Empty optional
// cells mean no demand and no window.
type Adapter struct {
	Comma rune // defaults to ','
}

func (a Adapter) Name() string { return "csv" }

func (a Adapter) Fetch(ctx context.Context, r io.Reader) ([]model.Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	if a.Comma != 0 {
		cr.Comma = a.Comma
	}
	var out []model.Location
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 1 && isHeader(rec) {
			continue
		}
		loc, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", row, err)
		}
		out = append(out, loc)
	}
	if len(out) == 0 {
		return nil, errors.New("csv: no rows")
	}
	return out, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err != nil
}

func parseRow(rec []string) (model.Location, error) {
	var loc model.Location
	if len(rec) < 2 {
		return loc, fmt.Errorf("want at least lat,lng; got %d fields", len(rec))
	}
	var err error
	if loc.Lat, err = strconv.ParseFloat(strings.TrimSpace(rec[0]), 64); err != nil {
		return loc, fmt.Errorf("lat: %w", err)
	}
	if loc.Lng, err = strconv.ParseFloat(strings.TrimSpace(rec[1]), 64); err != nil {
		return loc, fmt.Errorf("lng: %w", err)
	}
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	if v := cell(2); v != "" {
		if loc.Demand, err = strconv.Atoi(v); err != nil {
			return loc, fmt.Errorf("demand: %w", err)
		}
	}
	start, end := cell(3), cell(4)
	switch {
	case start == "" && end == "":
	case start == "" || end == "":
		return loc, errors.New("window needs both start and end")
	default:
		s, err := strconv.Atoi(start)
		if err != nil {
			return loc, fmt.Errorf("window start: %w", err)
		}
		e, err := strconv.Atoi(end)
		if err != nil {
			return loc, fmt.Errorf("window end: %w", err)
		}
		loc.Window = []int{s, e}
	}
	return loc, nil
}
