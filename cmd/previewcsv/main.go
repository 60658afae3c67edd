package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	previewRowsKey         = "preview_rows"
	combinedPreviewRowsKey = "preview_rows_combined"
)

type analyzedTable struct {
	Name              string                     `json:"name,omitempty"`
	TotalRows         int                        `json:"total_rows,omitempty"`
	AdditionalColumns map[string]json.RawMessage `json:"additional_columns,omitempty"`
	ChildTables       []string                   `json:"child_tables,omitempty"`
	PreviewRows       []map[string]any           `json:"preview_rows,omitempty"`
	CombinedRows      []map[string]any           `json:"preview_rows_combined,omitempty"`
}

type analyzedFile struct {
	Tables   map[string]analyzedTable     `json:"tables"`
	Headings map[string]map[string]string `json:"headings,omitempty"`
}

func main() {
	var inputPath string
	var outputDir string
	var combined bool
	flag.StringVar(&inputPath, "in", "", "analyzed data JSON path (required)")
	flag.StringVar(&outputDir, "out", "", "directory for preview CSVs (defaults to the input directory)")
	flag.BoolVar(&combined, "combined", false, "write "+combinedPreviewRowsKey+" as <table>_combined.csv")
	flag.Parse()

	if inputPath == "" {
		exitWithError(errors.New("missing --in path"))
	}
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}

	analyzed, err := readAnalyzed(inputPath)
	if err != nil {
		exitWithError(fmt.Errorf("read analysis: %w", err))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		exitWithError(err)
	}

	written, err := writePreviews(analyzed, outputDir, combined)
	if err != nil {
		exitWithError(err)
	}
	if err := writeAnalysisSummary(analyzed, filepath.Join(outputDir, "analysis.json")); err != nil {
		exitWithError(fmt.Errorf("write analysis summary: %w", err))
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "previewcsv: %v\n", err)
	os.Exit(1)
}

func readAnalyzed(path string) (analyzedFile, error) {
	var analyzed analyzedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return analyzed, err
	}
	if err := json.Unmarshal(data, &analyzed); err != nil {
		return analyzed, err
	}
	return analyzed, nil
}

func writePreviews(analyzed analyzedFile, dir string, combined bool) ([]string, error) {
	keys := make([]string, 0, len(analyzed.Tables))
	for key := range analyzed.Tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var written []string
	for _, key := range keys {
		table := analyzed.Tables[key]
		rows, name := table.PreviewRows, key+".csv"
		if combined {
			rows, name = table.CombinedRows, key+"_combined.csv"
		}
		if len(rows) == 0 {
			continue
		}
		path := filepath.Join(dir, name)
		if err := storePreviewCSV(rows, path); err != nil {
			return written, fmt.Errorf("%s: %w", key, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// storePreviewCSV writes rows with the sorted union of their keys as header.
func storePreviewCSV(rows []map[string]any, path string) error {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(seen))
	for k := range seen {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = formatValue(row[h])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64, bool:
		return fmt.Sprint(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	}
}

// writeAnalysisSummary keeps only what the viewer reads back.
func writeAnalysisSummary(analyzed analyzedFile, path string) error {
	summary := analyzedFile{
		Tables:   make(map[string]analyzedTable, len(analyzed.Tables)),
		Headings: analyzed.Headings,
	}
	for key, table := range analyzed.Tables {
		summary.Tables[key] = analyzedTable{
			Name:              table.Name,
			TotalRows:         table.TotalRows,
			AdditionalColumns: table.AdditionalColumns,
			ChildTables:       table.ChildTables,
		}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
