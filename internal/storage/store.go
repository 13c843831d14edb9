package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one recorded scenario run.
type RunMetadata struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	Steps     int       `json:"steps"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Elapsed   float64   `json:"elapsed_ms"`
}

// Entry is one command of a transcript.
type Entry struct {
	Index     int
	Command   string
	Status    string
	Value     string
	ElapsedMs float64
	Passed    bool
}

var header = []string{"index", "command", "status", "value", "elapsed_ms", "passed"}

// Save writes metadata.json and commands.csv into a new run directory and
// returns the run id. Counts in meta are recomputed from entries.
func (s *Store) Save(meta RunMetadata, entries []Entry) (string, error) {
	runID := fmt.Sprintf("%s_%s", slug(meta.Scenario), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Steps, meta.Passed, meta.Failed = len(entries), 0, 0
	meta.Elapsed = 0
	for _, e := range entries {
		if e.Passed {
			meta.Passed++
		} else {
			meta.Failed++
		}
		meta.Elapsed += e.ElapsedMs
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "commands.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, e := range entries {
		row := []string{
			strconv.Itoa(e.Index),
			e.Command,
			e.Status,
			e.Value,
			strconv.FormatFloat(e.ElapsedMs, 'f', 3, 64),
			strconv.FormatBool(e.Passed),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadEntries(runID string) ([]Entry, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "commands.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Entry{}, nil
	}

	out := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		elapsed, _ := strconv.ParseFloat(rec[4], 64)
		passed, _ := strconv.ParseBool(rec[5])
		out = append(out, Entry{
			Index:     idx,
			Command:   rec[1],
			Status:    rec[2],
			Value:     rec[3],
			ElapsedMs: elapsed,
			Passed:    passed,
		})
	}
	return out, nil
}

func slug(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "run"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
