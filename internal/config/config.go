package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"salesboard/internal"
)

type Config struct {
	DataDir        string
	SourcesFile    string
	SourceEncoding string
	DBPath         string
	CacheEnabled   bool
	OutputDir      string
	LogLevel       string

	HTTPAddr string
	TopN     int

	WatchIntervalSec int
	WatchAutoExport  bool

	Sources Sources
}

type MonthSource struct {
	Label      internal.Month `yaml:"label"`
	Candidates []string       `yaml:"candidates"`
}

// Sources is the static part of the configuration: which files back each
// month of the window and which cities the dataset is restricted to.
type Sources struct {
	Months []MonthSource `yaml:"months"`
	Cities []string      `yaml:"cities"`
}

var DefaultCities = []string{
	"CAJAZEIRAS", "CAMPINA GRANDE", "CATOLE DO ROCHA", "ITAPORANGA",
	"JUAZEIRINHO", "LIVRAMENTO", "MARIZOPOLIS", "MONTEIRO", "PATOS",
	"PIANCO", "POMBAL", "SANTA LUZIA", "SAO BENTO", "SOUSA",
}

func DefaultSources() Sources {
	return Sources{
		Months: []MonthSource{
			{Label: internal.MonthAGO, Candidates: []string{"AGO.csv"}},
			{Label: internal.MonthSET, Candidates: []string{"SET.csv"}},
			{Label: internal.MonthOUT, Candidates: []string{"OUTU.csv", "OUT (2).csv", "OUT.csv"}},
			{Label: internal.MonthNOV, Candidates: []string{"NOV.csv"}},
		},
		Cities: append([]string(nil), DefaultCities...),
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DataDir:        getEnv("DATA_DIR", cwd),
		SourcesFile:    getEnv("SOURCES_FILE", filepath.Join(cwd, "sources.yaml")),
		SourceEncoding: getEnv("SOURCE_ENCODING", "latin1"),
		DBPath:         getEnv("DB_PATH", filepath.Join(cwd, "data", "salesboard.db")),
		CacheEnabled:   getEnvBool("CACHE_ENABLED", true),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		TopN:     getEnvInt("TOP_N", 10),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 60),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),
	}

	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources = sources
	return cfg, nil
}

// LoadSources reads the sources file. A missing file falls back to the
// built-in window and city list; a present but invalid file is an error.
func LoadSources(path string) (Sources, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSources(), nil
	}
	if err != nil {
		return Sources{}, eris.Wrapf(err, "config: read sources %s", path)
	}

	var s Sources
	if err := yaml.Unmarshal(blob, &s); err != nil {
		return Sources{}, eris.Wrapf(err, "config: parse sources %s", path)
	}
	if len(s.Months) == 0 {
		s.Months = DefaultSources().Months
	}
	if len(s.Cities) == 0 {
		s.Cities = append([]string(nil), DefaultCities...)
	}
	if err := s.Validate(); err != nil {
		return Sources{}, eris.Wrapf(err, "config: invalid sources %s", path)
	}
	return s, nil
}

func (s Sources) Validate() error {
	if len(s.Months) != internal.WindowSize {
		return eris.Errorf("expected %d months, got %d", internal.WindowSize, len(s.Months))
	}
	seen := map[internal.Month]struct{}{}
	for _, m := range s.Months {
		label := internal.Month(strings.TrimSpace(string(m.Label)))
		if label == "" {
			return eris.New("month label is empty")
		}
		if _, dup := seen[label]; dup {
			return eris.Errorf("duplicate month label %s", label)
		}
		seen[label] = struct{}{}
		if len(m.Candidates) == 0 {
			return eris.Errorf("month %s has no candidate files", label)
		}
	}
	return nil
}

func (s Sources) Window() internal.Window {
	var w internal.Window
	for i := 0; i < internal.WindowSize && i < len(s.Months); i++ {
		w[i] = internal.Month(strings.TrimSpace(string(s.Months[i].Label)))
	}
	return w
}

// Resolve returns the first candidate of a month that exists under dataDir.
func (s Sources) Resolve(dataDir string, month internal.Month) (string, bool) {
	for _, m := range s.Months {
		if internal.Month(strings.TrimSpace(string(m.Label))) != month {
			continue
		}
		for _, candidate := range m.Candidates {
			path := candidate
			if !filepath.IsAbs(path) {
				path = filepath.Join(dataDir, candidate)
			}
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
