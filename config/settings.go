package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server         ServerSettings         `json:"server"`
	Database       DatabaseSettings       `json:"database"`
	Mapping        MappingSettings        `json:"mapping"`
	Crawl          CrawlSettings          `json:"crawl"`
	Export         ExportSettings         `json:"export"`
	ScheduledTasks ScheduledTasksSettings `json:"scheduledTasks"`
	Log            LogConfig              `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// MappingSettings drives the matching engine: global thresholds plus
// per-provider overrides keyed by provider name.
type MappingSettings struct {
	Threshold           float64                     `json:"threshold"`
	ComparisonThreshold float64                     `json:"comparisonThreshold"`
	WaitMs              int                         `json:"waitMs"`
	Provider            map[string]ProviderSettings `json:"provider,omitempty"`
}

// ProviderSettings overrides the global mapping defaults for one provider.
// Zero values fall back to the globals.
type ProviderSettings struct {
	Threshold           float64 `json:"threshold,omitempty"`
	ComparisonThreshold float64 `json:"comparisonThreshold,omitempty"`
	WaitMs              int     `json:"waitMs,omitempty"`
	TimeoutMs           int     `json:"timeoutMs,omitempty"`
}

type CrawlSettings struct {
	MaxIDs int `json:"maxIds"` // 0 = crawl every known ID
	WaitMs int `json:"waitMs"`
}

type ExportSettings struct {
	Directory string `json:"directory"`
}

type ScheduledTaskType string

const (
	ScheduledTaskTypeCrawl  ScheduledTaskType = "crawl"
	ScheduledTaskTypeExport ScheduledTaskType = "export"
)

type ScheduledTaskFrequency string

const (
	ScheduledTaskFrequencyHourly  ScheduledTaskFrequency = "hourly"
	ScheduledTaskFrequency6Hours  ScheduledTaskFrequency = "6hours"
	ScheduledTaskFrequency12Hours ScheduledTaskFrequency = "12hours"
	ScheduledTaskFrequencyDaily   ScheduledTaskFrequency = "daily"
)

// ScheduledTask is a recurring catalog maintenance job.
type ScheduledTask struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      ScheduledTaskType      `json:"type"`
	MediaType string                 `json:"mediaType"`
	Enabled   bool                   `json:"enabled"`
	Frequency ScheduledTaskFrequency `json:"frequency"`
	LastRunAt *time.Time             `json:"lastRunAt,omitempty"`
	LastError string                 `json:"lastError,omitempty"`
}

type ScheduledTasksSettings struct {
	CheckIntervalSeconds int             `json:"checkIntervalSeconds"`
	Tasks                []ScheduledTask `json:"tasks,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`    // megabytes
	MaxBackups int    `json:"maxBackups"` // number of old files to keep
	MaxAge     int    `json:"maxAge"`     // days
	Compress   bool   `json:"compress"`
}

// Effective resolves the mapping parameters for a provider, falling back to
// the global defaults where no override is configured.
func (m MappingSettings) Effective(provider string) ProviderSettings {
	eff := ProviderSettings{
		Threshold:           m.Threshold,
		ComparisonThreshold: m.ComparisonThreshold,
		WaitMs:              m.WaitMs,
	}
	override, ok := m.Provider[provider]
	if !ok {
		return eff
	}
	if override.Threshold > 0 {
		eff.Threshold = override.Threshold
	}
	if override.ComparisonThreshold > 0 {
		eff.ComparisonThreshold = override.ComparisonThreshold
	}
	if override.WaitMs > 0 {
		eff.WaitMs = override.WaitMs
	}
	eff.TimeoutMs = override.TimeoutMs
	return eff
}

func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 3000},
		Database: DatabaseSettings{Path: "cache/anisync.db"},
		Mapping: MappingSettings{
			Threshold:           0.8,
			ComparisonThreshold: 0.8,
			WaitMs:              200,
		},
		Crawl: CrawlSettings{
			MaxIDs: 0,
			WaitMs: 1000,
		},
		Export:         ExportSettings{Directory: "cache/exports"},
		ScheduledTasks: ScheduledTasksSettings{CheckIntervalSeconds: 60},
		Log: LogConfig{
			File:       "cache/logs/anisync.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating the file with defaults when it does
// not exist yet. Missing fields are backfilled so configs written by older
// versions keep working.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for settings the file predates.
	if s.Mapping.Threshold == 0 {
		s.Mapping.Threshold = 0.8
	}
	if s.Mapping.ComparisonThreshold == 0 {
		s.Mapping.ComparisonThreshold = 0.8
	}
	if s.Mapping.WaitMs == 0 {
		s.Mapping.WaitMs = 200
	}
	if s.Crawl.WaitMs == 0 {
		s.Crawl.WaitMs = 1000
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = "cache/anisync.db"
	}
	if strings.TrimSpace(s.Export.Directory) == "" {
		s.Export.Directory = "cache/exports"
	}
	if s.ScheduledTasks.CheckIntervalSeconds == 0 {
		s.ScheduledTasks.CheckIntervalSeconds = 60
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 50
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 7
	}

	return s, nil
}

// Save writes settings atomically via a temp file rename.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
