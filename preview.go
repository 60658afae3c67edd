package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	analysisFileName = "analysis.json"
	combinedSuffix   = "_combined"
)

var errNoPreviews = errors.New("no preview CSV files found")

type previewSheet struct {
	Headers   []string
	Rows      [][]string
	TotalRows int
}

// previewTable is one table of the preview directory. The embedded sheet is
// the combined preview shown while the table is not split; Split holds the
// per-array preview read from <key>.csv when <key>_combined.csv exists too.
type previewTable struct {
	Key string
	previewSheet
	Split       *previewSheet
	Additional  []string
	ChildTables []string
	Parent      string
}

func (p previewTable) canSplit() bool {
	return p.Split != nil || len(p.ChildTables) > 0
}

func (p previewTable) sheet(split bool) previewSheet {
	if split && p.Split != nil {
		return *p.Split
	}
	return p.previewSheet
}

type previewSet struct {
	Tables []previewTable
	// Labels holds heading dictionaries per language, keyed by column path
	// with array indexes masked.
	Labels map[string]map[string]string
}

type analysisFile struct {
	Tables   map[string]analysisTable     `json:"tables"`
	Headings map[string]map[string]string `json:"headings,omitempty"`
}

type analysisTable struct {
	Name              string                     `json:"name"`
	TotalRows         int                        `json:"total_rows"`
	AdditionalColumns map[string]json.RawMessage `json:"additional_columns"`
	ChildTables       []string                   `json:"child_tables"`
}

// loadPreviewDir reads every CSV in dir. <key>.csv and <key>_combined.csv
// belong to the same table. limit caps the rows kept per sheet; zero or
// less keeps them all.
func loadPreviewDir(dir string, limit int) (previewSet, error) {
	var set previewSet
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return set, err
	}
	if len(matches) == 0 {
		return set, fmt.Errorf("%s: %w", dir, errNoPreviews)
	}

	analysis, err := loadAnalysis(filepath.Join(dir, analysisFileName))
	if err != nil {
		return set, err
	}
	set.Labels = analysis.Headings

	plain := make(map[string]*previewSheet)
	combined := make(map[string]*previewSheet)
	for _, path := range matches {
		sheet, err := readPreviewCSV(path, limit)
		if err != nil {
			return set, err
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if key, ok := strings.CutSuffix(base, combinedSuffix); ok && key != "" {
			combined[key] = &sheet
			continue
		}
		plain[base] = &sheet
	}

	keys := make(map[string]struct{}, len(plain)+len(combined))
	for key := range plain {
		keys[key] = struct{}{}
	}
	for key := range combined {
		keys[key] = struct{}{}
	}

	parents := make(map[string]string)
	for key, info := range analysis.Tables {
		for _, child := range info.ChildTables {
			parents[child] = key
		}
	}

	for _, key := range sortedKeys(keys) {
		table := previewTable{Key: key, Parent: parents[key]}
		switch {
		case combined[key] != nil:
			table.previewSheet = *combined[key]
			table.Split = plain[key]
		default:
			table.previewSheet = *plain[key]
		}
		if info, ok := analysis.Tables[key]; ok {
			table.Additional = sortedKeys(info.AdditionalColumns)
			table.ChildTables = info.ChildTables
			if info.TotalRows > 0 {
				table.TotalRows = info.TotalRows
				if table.Split != nil {
					table.Split.TotalRows = info.TotalRows
				}
			}
		}
		set.Tables = append(set.Tables, table)
	}
	return set, nil
}

func readPreviewCSV(path string, limit int) (previewSheet, error) {
	var sheet previewSheet
	f, err := os.Open(path)
	if err != nil {
		return sheet, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return sheet, nil
	}
	if err != nil {
		return sheet, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	sheet.Headers = headers

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sheet, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		sheet.TotalRows++
		if limit > 0 && len(sheet.Rows) >= limit {
			continue
		}
		sheet.Rows = append(sheet.Rows, record)
	}
	return sheet, nil
}

// loadAnalysis treats a missing file as an empty analysis.
func loadAnalysis(path string) (analysisFile, error) {
	var analysis analysisFile
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return analysis, nil
	}
	if err != nil {
		return analysis, err
	}
	if err := json.Unmarshal(data, &analysis); err != nil {
		return analysis, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return analysis, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tableCSV renders headers and rows back to CSV text for the clipboard.
func tableCSV(headers []string, rows [][]string) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(headers); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return b.String(), nil
}
