package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/physics"
)

const (
	metadataFile  = "metadata.json"
	framesFile    = "frames.csv"
	particlesFile = "particles.csv"
)

var frameHeader = []string{
	"frame", "time", "substeps", "collisions",
	"kinetic", "elastic", "gravitational", "total",
	"min_y", "max_speed",
}

var particleHeader = []string{"index", "x", "y", "z", "vx", "vy", "vz"}

// Store archives runs under baseDir, one directory per run.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Spacing    float32            `json:"spacing"`
	Sphere     SphereMetadata     `json:"sphere"`
	Particles  int                `json:"particles"`
	Springs    int                `json:"springs"`
	Frames     int                `json:"frames"`
	FrameDt    float32            `json:"frame_dt"`
	Strategy   string             `json:"strategy"`
	Integrator string             `json:"integrator"`
	Backend    string             `json:"backend"`
	WallTime   time.Duration      `json:"wall_time_ns"`
	Metrics    map[string]float64 `json:"metrics"`
}

type SphereMetadata struct {
	Center [3]float32 `json:"center"`
	Radius float32    `json:"radius"`
}

// Run is everything a finished simulation leaves behind.
type Run struct {
	Meta      RunMetadata
	Samples   []metrics.Sample
	Particles []physics.Particle
}

// Save writes run and returns its id. ID and Timestamp are filled in when
// empty.
func (s *Store) Save(run Run) (string, error) {
	meta := run.Meta
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%s", meta.Preset, uuid.NewString()[:8])
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	frames := make([][]string, 0, len(run.Samples))
	for _, f := range run.Samples {
		frames = append(frames, []string{
			strconv.Itoa(f.Frame),
			formatFloat(f.Time),
			strconv.Itoa(f.Substeps),
			strconv.Itoa(f.Collisions),
			formatFloat(f.Kinetic),
			formatFloat(f.Elastic),
			formatFloat(f.Gravitational),
			formatFloat(f.Total()),
			formatFloat(float64(f.MinY)),
			formatFloat(float64(f.MaxSpeed)),
		})
	}
	if err := writeCSV(filepath.Join(runDir, framesFile), frameHeader, frames); err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(run.Particles))
	for i, p := range run.Particles {
		rows = append(rows, []string{
			strconv.Itoa(i),
			formatFloat(float64(p.Position.X())),
			formatFloat(float64(p.Position.Y())),
			formatFloat(float64(p.Position.Z())),
			formatFloat(float64(p.Velocity.X())),
			formatFloat(float64(p.Velocity.Y())),
			formatFloat(float64(p.Velocity.Z())),
		})
	}
	if err := writeCSV(filepath.Join(runDir, particlesFile), particleHeader, rows); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns every readable run, newest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]metrics.Sample, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}

	samples := make([]metrics.Sample, 0, len(records))
	for line, r := range records {
		if len(r) != len(frameHeader) {
			return nil, fmt.Errorf("%s line %d: expected %d fields, got %d", framesFile, line+2, len(frameHeader), len(r))
		}
		p := parser{}
		sm := metrics.Sample{
			Frame:         p.int(r[0]),
			Time:          p.float(r[1]),
			Substeps:      p.int(r[2]),
			Collisions:    p.int(r[3]),
			Kinetic:       p.float(r[4]),
			Elastic:       p.float(r[5]),
			Gravitational: p.float(r[6]),
			MinY:          float32(p.float(r[8])),
			MaxSpeed:      float32(p.float(r[9])),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, line+2, p.err)
		}
		samples = append(samples, sm)
	}
	return samples, nil
}

// LoadParticles reads the final particle state. Attributes are not archived.
func (s *Store) LoadParticles(runID string) ([]physics.Particle, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, particlesFile))
	if err != nil {
		return nil, err
	}

	out := make([]physics.Particle, 0, len(records))
	for line, r := range records {
		if len(r) != len(particleHeader) {
			return nil, fmt.Errorf("%s line %d: expected %d fields, got %d", particlesFile, line+2, len(particleHeader), len(r))
		}
		p := parser{}
		pt := physics.Particle{
			Index:    p.int(r[0]),
			Position: mgl32.Vec3{float32(p.float(r[1])), float32(p.float(r[2])), float32(p.float(r[3]))},
			Velocity: mgl32.Vec3{float32(p.float(r[4])), float32(p.float(r[5])), float32(p.float(r[6]))},
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s line %d: %w", particlesFile, line+2, p.err)
		}
		out = append(out, pt)
	}
	return out, nil
}

func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// readCSV returns the records after the header row.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parser keeps the first conversion error so a row can be read in one pass.
type parser struct {
	err error
}

func (p *parser) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) int(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}
