package planner

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/twtwtiwa05/gangnam-multimodal-routing/internal/dataset"
)

// ErrInvalidPreference rejects malformed preference input.
var ErrInvalidPreference = errors.New("invalid route preference")

var validate = validator.New()

// Preference is the query-time user profile. Weights are normalized before
// scoring; mobility preference maps each mode into [0,1].
type Preference struct {
	TimeWeight     float64 `json:"time_weight" validate:"gte=0,lte=1"`
	TransferWeight float64 `json:"transfer_weight" validate:"gte=0,lte=1"`
	WalkWeight     float64 `json:"walk_weight" validate:"gte=0,lte=1"`
	CostWeight     float64 `json:"cost_weight" validate:"gte=0,lte=1"`

	MobilityPreference map[dataset.MobilityMode]float64 `json:"mobility_preference" validate:"dive,gte=0,lte=1"`

	MaxWalkDistance float64 `json:"max_walk_distance" validate:"gte=0"`
	MaxWalkToStop   float64 `json:"max_walk_to_stop" validate:"gte=0"`
}

// DefaultPreference returns the balanced profile.
func DefaultPreference() Preference {
	return Preference{
		TimeWeight:     0.4,
		TransferWeight: 0.2,
		WalkWeight:     0.2,
		CostWeight:     0.2,
		MobilityPreference: map[dataset.MobilityMode]float64{
			dataset.MobilityBike:      0.5,
			dataset.MobilityKickboard: 0.5,
			dataset.MobilityEBike:     0.5,
		},
	}
}

// Validate checks field ranges and rejects unknown mobility modes.
func (p Preference) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreference, err)
	}
	for mode := range p.MobilityPreference {
		switch mode {
		case dataset.MobilityBike, dataset.MobilityKickboard, dataset.MobilityEBike:
		default:
			return fmt.Errorf("%w: unknown mobility mode %q", ErrInvalidPreference, mode)
		}
	}
	return nil
}

// applyDefaults fills zero limits and empty weight sets.
func (p *Preference) applyDefaults() {
	if p.MaxWalkDistance <= 0 {
		p.MaxWalkDistance = 800
	}
	if p.MaxWalkToStop <= 0 {
		p.MaxWalkToStop = 500
	}
	if p.TimeWeight == 0 && p.TransferWeight == 0 && p.WalkWeight == 0 && p.CostWeight == 0 {
		def := DefaultPreference()
		p.TimeWeight = def.TimeWeight
		p.TransferWeight = def.TransferWeight
		p.WalkWeight = def.WalkWeight
		p.CostWeight = def.CostWeight
	}
	if p.MobilityPreference == nil {
		p.MobilityPreference = DefaultPreference().MobilityPreference
	}
}

// normalized returns the four criteria weights scaled to sum to one.
func (p Preference) normalized() (time, transfer, walk, cost float64) {
	sum := p.TimeWeight + p.TransferWeight + p.WalkWeight + p.CostWeight
	if sum == 0 {
		return 0.25, 0.25, 0.25, 0.25
	}
	return p.TimeWeight / sum, p.TransferWeight / sum, p.WalkWeight / sum, p.CostWeight / sum
}
