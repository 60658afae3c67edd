package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

const exportOptionsFileName = "flatten-options.json"

type flattenSelection struct {
	Split   bool              `json:"split"`
	Headers map[string]string `json:"headers,omitempty"`
	Name    string            `json:"name,omitempty"`
}

type flattenOptions struct {
	Selection map[string]flattenSelection `json:"selection"`
	Exclude   []string                    `json:"exclude,omitempty"`
}

type exportTable struct {
	Key      string
	Heading  string
	Excluded bool
	Split    bool
	Headers  map[string]string
}

func buildFlattenOptions(tables []exportTable) flattenOptions {
	opts := flattenOptions{Selection: make(map[string]flattenSelection)}
	for _, table := range tables {
		if table.Excluded {
			opts.Exclude = append(opts.Exclude, table.Key)
			continue
		}
		sel := flattenSelection{Split: table.Split, Headers: table.Headers}
		if table.Heading != "" && table.Heading != table.Key {
			sel.Name = table.Heading
		}
		opts.Selection[table.Key] = sel
	}
	sort.Strings(opts.Exclude)
	return opts
}

func writeFlattenOptions(dir string, opts flattenOptions) (string, error) {
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	path := filepath.Join(dir, exportOptionsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
