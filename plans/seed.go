/*
seed.go - YAML plan catalog loading

PURPOSE:
  Loads the initial plan catalog from a YAML file and seeds the registry
  on first boot. Decimal fields are YAML strings so amounts round-trip
  exactly.

FILE FORMAT (plans.yaml):
  plans:
    - id: daily-grind
      name: Daily Grind
      description: Steady 5% daily returns for 30 days.
      min_deposit: "500"
      max_deposit: "10000"
      return_percentage: "5"
      duration_value: 30
      duration_unit: days
      hash_rate: "50"
      active: true
*/
package plans

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type catalogFile struct {
	Plans []planEntry `yaml:"plans"`
}

type planEntry struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	MinDeposit       string `yaml:"min_deposit"`
	MaxDeposit       string `yaml:"max_deposit"`
	ReturnPercentage string `yaml:"return_percentage"`
	DurationValue    int    `yaml:"duration_value"`
	DurationUnit     string `yaml:"duration_unit"`
	HashRate         string `yaml:"hash_rate"`
	Active           bool   `yaml:"active"`
}

// LoadCatalog parses and validates a YAML plan catalog file.
func LoadCatalog(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates YAML catalog bytes.
func ParseCatalog(data []byte) ([]Template, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}

	templates := make([]Template, 0, len(file.Plans))
	for i, p := range file.Plans {
		t, err := p.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("plan catalog entry %d (%s): %w", i, p.ID, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (p planEntry) toTemplate() (Template, error) {
	unit, err := ParseDurationUnit(p.DurationUnit)
	if err != nil {
		return Template{}, err
	}

	minDep, err := decimal.NewFromString(p.MinDeposit)
	if err != nil {
		return Template{}, fmt.Errorf("min_deposit: %w", err)
	}
	maxDep, err := decimal.NewFromString(p.MaxDeposit)
	if err != nil {
		return Template{}, fmt.Errorf("max_deposit: %w", err)
	}
	pct, err := decimal.NewFromString(p.ReturnPercentage)
	if err != nil {
		return Template{}, fmt.Errorf("return_percentage: %w", err)
	}
	hashRate := decimal.Zero
	if p.HashRate != "" {
		if hashRate, err = decimal.NewFromString(p.HashRate); err != nil {
			return Template{}, fmt.Errorf("hash_rate: %w", err)
		}
	}

	t := Template{
		ID:               PlanID(p.ID),
		Name:             p.Name,
		Description:      p.Description,
		MinDeposit:       minDep,
		MaxDeposit:       maxDep,
		ReturnPercentage: pct,
		DurationValue:    p.DurationValue,
		DurationUnit:     unit,
		HashRate:         hashRate,
		IsActive:         p.Active,
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// Seed saves templates into an empty registry. A non-empty registry is
// left untouched so admin edits survive restarts.
func Seed(ctx context.Context, r Registry, templates []Template) (int, error) {
	existing, err := r.List(ctx, true)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for _, t := range templates {
		if err := r.Save(ctx, t); err != nil {
			return 0, fmt.Errorf("seed plan %s: %w", t.ID, err)
		}
	}
	return len(templates), nil
}
