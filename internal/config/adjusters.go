package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/shipping"
	"gopkg.in/yaml.v3"
)

// Adjuster rule kinds.
const (
	RulePercentage = "percentage"
	RuleMarkup     = "markup"
	RuleRound      = "round"
)

// AdjusterRule is one entry of a rate adjusters file.
//
//	adjusters:
//	  - type: percentage
//	    factor: "0.90"
//	    providers: [ups, fedex]
//	  - type: markup
//	    amount: "1.50"
//	  - type: round
//	    places: 2
type AdjusterRule struct {
	Type      string   `yaml:"type"`
	Factor    string   `yaml:"factor,omitempty"`
	Amount    string   `yaml:"amount,omitempty"`
	Places    *int32   `yaml:"places,omitempty"`
	Providers []string `yaml:"providers,omitempty"`
}

// AdjusterFile is the top-level document of a rate adjusters file.
type AdjusterFile struct {
	Adjusters []AdjusterRule `yaml:"adjusters"`
}

// LoadAdjusters reads a rate adjusters file from disk.
func LoadAdjusters(path string) ([]shipping.RateAdjuster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading adjusters file: %w", err)
	}
	return ParseAdjusters(data)
}

// ParseAdjusters decodes a rate adjusters document. Rules are returned in
// file order, which is the order they are applied.
func ParseAdjusters(data []byte) ([]shipping.RateAdjuster, error) {
	var file AdjusterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing adjusters file: %w", err)
	}

	adjusters := make([]shipping.RateAdjuster, 0, len(file.Adjusters))
	for i, rule := range file.Adjusters {
		adj, err := rule.build()
		if err != nil {
			return nil, fmt.Errorf("adjuster %d: %w", i, err)
		}
		adjusters = append(adjusters, adj)
	}
	return adjusters, nil
}

func (r AdjusterRule) build() (shipping.RateAdjuster, error) {
	var adj shipping.RateAdjuster
	switch strings.ToLower(r.Type) {
	case RulePercentage:
		factor, err := decimal.NewFromString(r.Factor)
		if err != nil {
			return nil, fmt.Errorf("invalid factor %q: %w", r.Factor, err)
		}
		if factor.IsNegative() {
			return nil, fmt.Errorf("factor must not be negative, got %s", factor)
		}
		adj = shipping.PercentageAdjuster(factor)
	case RuleMarkup:
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
		}
		adj = shipping.MarkupAdjuster(amount)
	case RuleRound:
		if r.Places == nil {
			return nil, errors.New("round requires places")
		}
		if *r.Places < 0 {
			return nil, fmt.Errorf("places must not be negative, got %d", *r.Places)
		}
		adj = shipping.RoundingAdjuster(*r.Places)
	default:
		return nil, fmt.Errorf("unknown adjuster type %q", r.Type)
	}

	if len(r.Providers) == 0 {
		return adj, nil
	}
	return forProviders(adj, r.Providers), nil
}

// forProviders applies adj only to rates from the named providers.
func forProviders(adj shipping.RateAdjuster, providers []string) shipping.RateAdjuster {
	names := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		names[strings.ToLower(p)] = struct{}{}
	}
	return shipping.RateAdjusterFunc(func(rate shipping.Rate) shipping.Rate {
		if _, ok := names[strings.ToLower(rate.Provider)]; !ok {
			return rate
		}
		return adj.AdjustRate(rate)
	})
}
