// Package catalog loads the per-deployment service catalog: the cleaning and
// repair services a company offers, with default pricing. Job service items
// reference catalog codes.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const SpecSchemaV1 = "rugtrack.catalog.v1"

const (
	UnitFlat         = "flat"
	UnitPerSquareFt  = "per_sqft"
	UnitPerRug       = "per_rug"
	UnitDefault      = UnitFlat
	MaxCatalogSize   = 500
	MaxServiceLength = 120
)

type Spec struct {
	Schema   string    `json:"schema" yaml:"schema"`
	Currency string    `json:"currency,omitempty" yaml:"currency,omitempty"`
	Services []Service `json:"services" yaml:"services"`
}

type Service struct {
	Code         string `json:"code" yaml:"code"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Unit         string `json:"unit,omitempty" yaml:"unit,omitempty"`
	BaseCents    int64  `json:"base_cents" yaml:"base_cents"`
	RequiresRugs bool   `json:"requires_rugs,omitempty" yaml:"requires_rugs,omitempty"`
}

func ParseSpec(input []byte) (Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(input, &spec); err != nil {
		return Spec{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	type alias Spec
	return json.Marshal(alias(s))
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.Schema) != SpecSchemaV1 {
		return fmt.Errorf("catalog.schema must be %q", SpecSchemaV1)
	}
	if len(s.Services) == 0 {
		return errors.New("catalog.services must be non-empty")
	}
	if len(s.Services) > MaxCatalogSize {
		return fmt.Errorf("catalog.services must not exceed %d entries", MaxCatalogSize)
	}

	currency := strings.ToUpper(strings.TrimSpace(s.Currency))
	if currency != "" && len(currency) != 3 {
		return fmt.Errorf("catalog.currency must be a 3-letter code (got %q)", s.Currency)
	}

	seen := make(map[string]struct{}, len(s.Services))
	for i, svc := range s.Services {
		code := strings.TrimSpace(svc.Code)
		if code == "" {
			return fmt.Errorf("catalog.services[%d].code is required", i)
		}
		if _, ok := seen[strings.ToLower(code)]; ok {
			return fmt.Errorf("catalog.services[%d].code must be unique (duplicate %q)", i, code)
		}
		seen[strings.ToLower(code)] = struct{}{}

		name := strings.TrimSpace(svc.Name)
		if name == "" {
			return fmt.Errorf("catalog.services[%d].name is required", i)
		}
		if len(name) > MaxServiceLength {
			return fmt.Errorf("catalog.services[%d].name must not exceed %d characters", i, MaxServiceLength)
		}
		if svc.BaseCents < 0 {
			return fmt.Errorf("catalog.services[%d].base_cents must not be negative", i)
		}
		unit := strings.ToLower(strings.TrimSpace(svc.Unit))
		if unit != "" && !isUnitAllowed(unit) {
			return fmt.Errorf("catalog.services[%d].unit unsupported: %q", i, svc.Unit)
		}
	}
	return nil
}

// Lookup returns the catalog entry for a code, matching case-insensitively.
func (s Spec) Lookup(code string) (Service, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Service{}, false
	}
	for _, svc := range s.Services {
		if strings.ToLower(strings.TrimSpace(svc.Code)) == code {
			return svc, true
		}
	}
	return Service{}, false
}

func (s Service) EffectiveUnit() string {
	unit := strings.ToLower(strings.TrimSpace(s.Unit))
	if unit == "" {
		return UnitDefault
	}
	return unit
}

func isUnitAllowed(unit string) bool {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case UnitFlat, UnitPerSquareFt, UnitPerRug:
		return true
	default:
		return false
	}
}
