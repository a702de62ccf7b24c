package testkit

import (
	"fmt"
	"math/rand"

	"tomoseq/domain/expression"
)

// TomoGeneratorConfig configures the synthetic tomo-seq generator
type TomoGeneratorConfig struct {
	GeneCount    int `json:"gene_count"`
	SectionCount int `json:"section_count"`
	// The first PeakGenes genes carry a planted peak PeakWidth sections wide.
	PeakGenes int `json:"peak_genes"`
	PeakWidth int `json:"peak_width"`
	// Background counts are uniform in [BaseMin, BaseMax]; peaks sit around PeakLevel.
	BaseMin   int     `json:"base_min"`
	BaseMax   int     `json:"base_max"`
	PeakLevel float64 `json:"peak_level"`
	Seed      int64   `json:"seed"`
}

// DefaultTomoConfig returns a small matrix with a handful of planted peaks
func DefaultTomoConfig() TomoGeneratorConfig {
	return TomoGeneratorConfig{
		GeneCount:    40,
		SectionCount: 24,
		PeakGenes:    4,
		PeakWidth:    5,
		BaseMin:      1,
		BaseMax:      4,
		PeakLevel:    60,
		Seed:         42,
	}
}

// PlantedPeak is the ground truth for one generated peak gene. Start and End
// are 1-based and inclusive.
type PlantedPeak struct {
	Gene  string
	Start int
	End   int
}

// TomoDataset is a generated count matrix plus its ground truth.
type TomoDataset struct {
	Counts *expression.Matrix
	Peaks  []PlantedPeak
}

// TomoDataGenerator generates synthetic gene x section count matrices
type TomoDataGenerator struct {
	config TomoGeneratorConfig
	rng    *rand.Rand
}

// NewTomoDataGenerator creates a new generator
func NewTomoDataGenerator(config TomoGeneratorConfig) *TomoDataGenerator {
	return &TomoDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the matrix. Peak positions are spread along the section
// axis so planted genes do not share a window.
func (g *TomoDataGenerator) Generate() (*TomoDataset, error) {
	cfg := g.config
	if cfg.GeneCount < 1 || cfg.SectionCount < 2 {
		return nil, fmt.Errorf("need at least 1 gene and 2 sections, got %d x %d", cfg.GeneCount, cfg.SectionCount)
	}
	if cfg.PeakGenes > cfg.GeneCount {
		return nil, fmt.Errorf("peak genes (%d) exceed gene count (%d)", cfg.PeakGenes, cfg.GeneCount)
	}
	if cfg.PeakGenes > 0 && (cfg.PeakWidth < 1 || cfg.PeakWidth > cfg.SectionCount) {
		return nil, fmt.Errorf("peak width %d outside [1, %d]", cfg.PeakWidth, cfg.SectionCount)
	}
	if cfg.BaseMax < cfg.BaseMin || cfg.BaseMin < 0 {
		return nil, fmt.Errorf("invalid background range [%d, %d]", cfg.BaseMin, cfg.BaseMax)
	}

	genes := make([]string, cfg.GeneCount)
	for i := range genes {
		genes[i] = fmt.Sprintf("gene_%04d", i+1)
	}
	sections := make([]string, cfg.SectionCount)
	for j := range sections {
		sections[j] = fmt.Sprintf("S%02d", j+1)
	}

	values := make([][]float64, cfg.GeneCount)
	for i := range values {
		row := make([]float64, cfg.SectionCount)
		for j := range row {
			row[j] = float64(cfg.BaseMin + g.rng.Intn(cfg.BaseMax-cfg.BaseMin+1))
		}
		values[i] = row
	}

	var planted []PlantedPeak
	span := cfg.SectionCount - cfg.PeakWidth
	for p := 0; p < cfg.PeakGenes; p++ {
		start := 0
		if cfg.PeakGenes > 1 {
			start = p * span / (cfg.PeakGenes - 1)
		}
		for j := start; j < start+cfg.PeakWidth; j++ {
			jitter := 0.9 + 0.2*g.rng.Float64()
			values[p][j] = float64(int(cfg.PeakLevel * jitter))
		}
		planted = append(planted, PlantedPeak{Gene: genes[p], Start: start + 1, End: start + cfg.PeakWidth})
	}

	counts, err := expression.New(genes, sections, values)
	if err != nil {
		return nil, err
	}
	return &TomoDataset{Counts: counts, Peaks: planted}, nil
}
