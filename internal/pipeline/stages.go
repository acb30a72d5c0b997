package pipeline

import (
	"neuroproc/internal/imaging"
	"neuroproc/internal/preprocess"
	"neuroproc/internal/quality"
	"neuroproc/internal/register"
)

// Stages is the computational core of the pipeline. Tests substitute a
// fake; production uses NewStages.
type Stages interface {
	Load(record FileRecord) (*imaging.Volume, error)
	Preprocess(img *imaging.Volume) (*imaging.Volume, error)
	Extract(img *imaging.Volume) (*imaging.Volume, error)
	Assess(img *imaging.Volume) quality.Metrics
}

// StageParams configures the production stages.
type StageParams struct {
	AtlasDir     string
	Preprocess   preprocess.Params
	Registration register.Kind
}

type prodStages struct {
	params StageParams
}

// NewStages returns the production stage implementation backed by the
// imaging, preprocess, register, and quality packages.
func NewStages(params StageParams) Stages {
	return &prodStages{params: params}
}

func (s *prodStages) Load(record FileRecord) (*imaging.Volume, error) {
	if record.Kind == KindSeries {
		return imaging.LoadSeries(record.Path)
	}
	return imaging.Load(record.Path)
}

func (s *prodStages) Preprocess(img *imaging.Volume) (*imaging.Volume, error) {
	return preprocess.Run(img, s.params.Preprocess)
}

func (s *prodStages) Extract(img *imaging.Volume) (*imaging.Volume, error) {
	return register.SkullStrip(img, s.params.AtlasDir, s.params.Registration)
}

func (s *prodStages) Assess(img *imaging.Volume) quality.Metrics {
	return quality.Assess(img)
}
