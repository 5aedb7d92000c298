// Package params loads k-point convergence sweep parameters.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"qcbatch/internal/apperrors"
)

// ConvParams describes the range of k-point grids to sweep.
type ConvParams struct {
	KPointMin int `yaml:"kpoint_n_min"`
	KPointMax int `yaml:"kpoint_n_max"`
}

func (p ConvParams) withDefaults() ConvParams {
	if p.KPointMin == 0 {
		p.KPointMin = 1
	}
	if p.KPointMax == 0 {
		p.KPointMax = 4
	}
	return p
}

func (p ConvParams) validate() error {
	if p.KPointMin < 1 {
		return apperrors.Validation("kpoint_n_min", "must be >= 1")
	}
	if p.KPointMax < p.KPointMin {
		return apperrors.Validation("kpoint_n_max",
			fmt.Sprintf("must be >= kpoint_n_min (%d)", p.KPointMin))
	}
	return nil
}

// Load reads sweep parameters from a YAML file. Missing keys fall back to
// a 1..4 grid range.
func Load(path string) (ConvParams, error) {
	var p ConvParams

	data, err := os.ReadFile(path)
	if err != nil {
		return p, apperrors.NotFound("parameter file", path)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, apperrors.Validation("parameter file", err.Error())
	}

	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Grids returns the k-point grid sizes covered by the sweep, smallest first.
func (p ConvParams) Grids() []int {
	grids := make([]int, 0, p.KPointMax-p.KPointMin+1)
	for n := p.KPointMin; n <= p.KPointMax; n++ {
		grids = append(grids, n)
	}
	return grids
}
