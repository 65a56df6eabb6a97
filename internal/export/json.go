package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/storage"
)

type ExportData struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	FrameDt    float32            `json:"frame_dt"`
	Frames     int                `json:"frames"`
	Strategy   string             `json:"strategy"`
	Integrator string             `json:"integrator"`
	Metrics    map[string]float64 `json:"metrics"`
	Series     []FrameData        `json:"series"`
	Particles  []ParticleData     `json:"particles"`
}

type FrameData struct {
	Frame      int     `json:"frame"`
	Time       float64 `json:"time"`
	Substeps   int     `json:"substeps"`
	Collisions int     `json:"collisions"`
	Energy     float64 `json:"energy"`
	MinY       float32 `json:"min_y"`
}

type ParticleData struct {
	Position [3]float32 `json:"position"`
	Velocity [3]float32 `json:"velocity"`
}

func NewExportData(meta storage.RunMetadata, samples []metrics.Sample, particles []physics.Particle) ExportData {
	data := ExportData{
		ID:         meta.ID,
		Preset:     meta.Preset,
		Width:      meta.Width,
		Height:     meta.Height,
		FrameDt:    meta.FrameDt,
		Frames:     len(samples),
		Strategy:   meta.Strategy,
		Integrator: meta.Integrator,
		Metrics:    meta.Metrics,
		Series:     make([]FrameData, len(samples)),
		Particles:  make([]ParticleData, len(particles)),
	}
	for i, s := range samples {
		data.Series[i] = FrameData{
			Frame:      s.Frame,
			Time:       s.Time,
			Substeps:   s.Substeps,
			Collisions: s.Collisions,
			Energy:     s.Total(),
			MinY:       s.MinY,
		}
	}
	for i, p := range particles {
		data.Particles[i] = ParticleData{Position: p.Position, Velocity: p.Velocity}
	}
	return data
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportJSON writes data to path, or to stdout when path is "-".
func ExportJSON(path string, data ExportData) error {
	if path == "-" {
		return WriteJSON(os.Stdout, data)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, data); err != nil {
		return err
	}
	return file.Close()
}
