// Package gravstore persists bench-run results the way the teacher's
// internal/storage/store.go persists a simulation run: one directory per
// run, a metadata.json summary and an accelerations.csv of the numeric payload —
// here final accelerations instead of state trajectories.
package gravstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/gravtree/internal/particle"
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

// RunMetadata is one bench run's summary: the configuration it ran under
// plus whatever scalar metrics the run produced (round count, elapsed
// wall time, particle count), mirroring dynsim's RunMetadata.Metrics map.
type RunMetadata struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Dim       int                `json:"dim"`
	Parallel  bool               `json:"parallel"`
	NumRanks  int                `json:"num_ranks"`
	SplitKind string             `json:"split_kind"`
	Theta     float64            `json:"theta"`
	MaxExport int                `json:"max_export"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes metadata.json and accelerations.csv for one run, returning
// the generated run ID (a timestamped directory name, same scheme as
// dynsim's Save).
func (s *Store) Save(label string, meta RunMetadata, c *particle.Container) (string, error) {
	runID := fmt.Sprintf("%s_%d", label, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()

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

	csvFile, err := os.Create(filepath.Join(runDir, "accelerations.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"particle", "mass"}
	for k := 0; k < c.Dim; k++ {
		header = append(header, fmt.Sprintf("a%d", k))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i := 0; i < c.N(); i++ {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(c.Mass[i], 'f', 6, 64)}
		for k := 0; k < c.Dim; k++ {
			row = append(row, strconv.FormatFloat(c.Acc[k][i], 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

// List returns every run's metadata, skipping any directory missing or
// holding an unparsable metadata.json.
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
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
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

// LoadAccelerationMagnitudes reads back accelerations.csv and reduces each
// row to |a|, the shape cmd/gravtree's bench histogram plots.
func (s *Store) LoadAccelerationMagnitudes(runID string) ([]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "accelerations.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []float64{}, nil
	}

	mags := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 3 {
			continue
		}
		sumSq := 0.0
		for j := 2; j < len(record); j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			sumSq += v * v
		}
		mags = append(mags, math.Sqrt(sumSq))
	}
	return mags, nil
}
