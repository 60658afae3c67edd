package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

type telemetryLine struct {
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Event     string            `json:"event"`
	Source    string            `json:"source"`
	Table     string            `json:"table"`
	ExtraJSON map[string]string `json:"extra_json"`
}

type tableSummary struct {
	Source    string    `json:"source"`
	Table     string    `json:"table"`
	Renames   int       `json:"renames"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	LastTime  time.Time `json:"last_time"`
}

type summaryReport struct {
	Input    string         `json:"input"`
	Sessions int            `json:"sessions"`
	Exports  int            `json:"exports"`
	Skipped  int            `json:"skipped_lines"`
	Tables   []tableSummary `json:"tables"`
}

func main() {
	var inputPath string
	var outputPath string
	flag.StringVar(&inputPath, "in", "", "telemetry JSONL path (required)")
	flag.StringVar(&outputPath, "out", "", "output JSON path (optional, defaults to stdout)")
	flag.Parse()

	if inputPath == "" {
		exit(errors.New("missing --in path"))
	}

	file, err := os.Open(inputPath)
	if err != nil {
		exit(err)
	}
	report, err := summarize(file)
	file.Close()
	if err != nil {
		exit(fmt.Errorf("parse telemetry: %w", err))
	}
	report.Input = inputPath

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exit(fmt.Errorf("encode report: %w", err))
	}

	if outputPath == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(outputPath, append(encoded, '\n'), 0o644); err != nil {
		exit(fmt.Errorf("write output: %w", err))
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "renamesummary: %v\n", err)
	os.Exit(1)
}

func summarize(r io.Reader) (summaryReport, error) {
	var report summaryReport
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	sessions := make(map[string]struct{})
	tables := make(map[string]*tableSummary)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line telemetryLine
		if err := json.Unmarshal(raw, &line); err != nil {
			report.Skipped++
			continue
		}
		if line.SessionID != "" {
			sessions[line.SessionID] = struct{}{}
		}
		switch line.Event {
		case "export_requested":
			report.Exports++
		case "table_renamed":
			id := line.Source + "\x00" + line.Table
			summary, ok := tables[id]
			if !ok {
				summary = &tableSummary{Source: line.Source, Table: line.Table, FirstName: line.ExtraJSON["from"]}
				tables[id] = summary
			}
			summary.Renames++
			if !line.Timestamp.Before(summary.LastTime) {
				summary.LastTime = line.Timestamp
				summary.LastName = line.ExtraJSON["to"]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return report, err
	}

	report.Sessions = len(sessions)
	report.Tables = make([]tableSummary, 0, len(tables))
	for _, summary := range tables {
		report.Tables = append(report.Tables, *summary)
	}
	sort.Slice(report.Tables, func(i, j int) bool {
		if report.Tables[i].Source != report.Tables[j].Source {
			return report.Tables[i].Source < report.Tables[j].Source
		}
		return report.Tables[i].Table < report.Tables[j].Table
	})
	return report, nil
}
