// Package precip flags azimuth/gate zones whose reflectivity rises too steeply
// with elevation to be precipitation.
package precip

import (
	"errors"
	"fmt"

	"github.com/banshee-data/bugtracker/internal/config"
	"github.com/banshee-data/bugtracker/internal/grid"
)

var (
	// ErrInvalidZoneRegion is returned when a region size does not evenly divide the grid.
	ErrInvalidZoneRegion = errors.New("invalid zone region")

	// ErrDegenerateAngles is returned when the scan angles span fewer than two
	// distinct values and masked samples are pooled.
	ErrDegenerateAngles = errors.New("degenerate scan angles")
)

// Abscissa selects what reflectivity is regressed against.
type Abscissa int

const (
	// AbscissaAngle regresses against elevation angle in degrees.
	AbscissaAngle Abscissa = iota
	// AbscissaHeight regresses against beam height in km at the zone's middle gate.
	AbscissaHeight
)

func (a Abscissa) String() string {
	if a == AbscissaHeight {
		return config.AbscissaHeight
	}
	return config.AbscissaAngle
}

// Weighting selects how pooled samples are weighted in the regression.
type Weighting int

const (
	// WeightNone gives every sample equal weight.
	WeightNone Weighting = iota
	// WeightPerAngle gives every elevation angle equal total weight.
	WeightPerAngle
)

// Params are fixed for the duration of one detection pass.
type Params struct {
	AzimRegion int
	GateRegion int
	// MaxSlope is in dB per degree, or dB per km with AbscissaHeight.
	MaxSlope float64

	Abscissa Abscissa
	// ExcludeMasked drops masked samples and samples under the exclusion
	// mask, and skips zones left with fewer than two angles.
	ExcludeMasked bool
	Weighting     Weighting
}

// ParamsFromConfig reads the detector settings once from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	p := Params{
		AzimRegion:    cfg.GetAzimRegion(),
		GateRegion:    cfg.GetGateRegion(),
		MaxSlope:      cfg.GetMaxSlope(),
		ExcludeMasked: cfg.GetExcludeMasked(),
	}
	if cfg.GetAbscissa() == config.AbscissaHeight {
		p.Abscissa = AbscissaHeight
	}
	if cfg.GetWeightPerAngle() {
		p.Weighting = WeightPerAngle
	}
	return p
}

// Zones returns the zone counts along azimuth and gate, or ErrInvalidZoneRegion.
func (p Params) Zones(g grid.Geometry) (azimZones, gateZones int, err error) {
	if p.AzimRegion <= 0 || g.Azimuths%p.AzimRegion != 0 {
		return 0, 0, fmt.Errorf("%w: choose azim_region that divides %d evenly, got %d",
			ErrInvalidZoneRegion, g.Azimuths, p.AzimRegion)
	}
	if p.GateRegion <= 0 || g.Gates%p.GateRegion != 0 {
		return 0, 0, fmt.Errorf("%w: choose gate_region that divides %d evenly, got %d",
			ErrInvalidZoneRegion, g.Gates, p.GateRegion)
	}
	return g.Azimuths / p.AzimRegion, g.Gates / p.GateRegion, nil
}
