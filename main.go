package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath   string
	themeFlag    string
	strictFlag   bool
	headingsFlag string
	rowsFlag     int
	debugFlag    bool
	logFileFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "flatview [preview-dir]",
	Short: "Browse flattened table previews and rename tables",
	Long: `flatview shows every preview CSV in a directory as a table.

Columns listed as additional in analysis.json are highlighted. Press r on a
table to rename it; names are remembered per directory and used when the
flatten options file is exported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runViewer,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to ui.yaml (default: user config dir)")
	rootCmd.Flags().StringVar(&themeFlag, "theme", "", "help rendering theme: auto, light, or dark")
	rootCmd.Flags().BoolVar(&strictFlag, "strict", false, "reject ragged rows and unknown additional columns")
	rootCmd.Flags().StringVar(&headingsFlag, "headings", "", "column headings: ocds, en_r_friendly, es_r_friendly, en_user_friendly, or es_user_friendly")
	rootCmd.Flags().IntVar(&rowsFlag, "rows", 0, "preview rows per table (0 uses config, -1 for all)")
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "", "log file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, cfgPath := loadUIConfig(configPath)
	applyFlagOverrides(cmd, cfg)
	headings, err := parseHeadingsType(cfg.HeadingsType)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogFile, debugFlag)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	source, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	previews, err := loadPreviewDir(source, cfg.previewRows())
	if err != nil {
		return fmt.Errorf("load previews: %w", err)
	}

	store, err := openHeadingStore(resolveConfigDir())
	if err != nil {
		return fmt.Errorf("open heading store: %w", err)
	}
	defer store.Close()

	saved, err := store.List(source)
	if err != nil {
		logger.Warn("Could not read saved headings", zap.Error(err))
	}

	sessionID := newTelemetrySessionID()
	telemetry := newTelemetryLogger(filepath.Join(resolveConfigDir(), "telemetry.jsonl"), sessionID, resolveTelemetryUserID())
	logger = logger.With(zap.String("session", sessionID))
	logger.Info("Starting viewer",
		zap.String("source", source),
		zap.Int("tables", len(previews.Tables)),
		zap.String("headings_type", string(headings)),
		zap.Bool("strict", cfg.Strict))

	m, err := newModel(modelDeps{
		source:       source,
		previews:     previews,
		headings:     saved,
		headingsType: headings,
		store:        store,
		telemetry:    telemetry,
		logger:       logger,
		config:       cfg,
		configPath:   cfgPath,
		strict:       cfg.Strict,
	})
	if err != nil {
		return err
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	logger.Info("Viewer closed")
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *uiConfig) {
	flags := cmd.Flags()
	if flags.Changed("theme") {
		cfg.Theme = themeFlag
	}
	if flags.Changed("strict") {
		cfg.Strict = strictFlag
	}
	if flags.Changed("headings") {
		cfg.HeadingsType = headingsFlag
	}
	if flags.Changed("rows") && rowsFlag != 0 {
		cfg.PreviewRows = rowsFlag
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFileFlag
	}
	setMarkdownTheme(markdownThemeFromString(cfg.Theme))
}
