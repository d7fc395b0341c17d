package pricing

import (
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Estimate is the price/sell-probability result for a brand and condition.
type Estimate struct {
	QuickSellPrice  int
	MaxProfitPrice  int
	SellProbability int
}

// BrandPrice maps a brand keyword to a base price in euros. Keywords are
// matched as substrings of the lowercased brand, in configuration order,
// first match wins.
type BrandPrice struct {
	Keyword   string `yaml:"keyword"`
	BasePrice int    `yaml:"basePrice"`
}

// ConditionFactor maps a condition keyword to a price multiplier, matched
// the same way as brands.
type ConditionFactor struct {
	Keyword    string  `yaml:"keyword"`
	Multiplier float64 `yaml:"multiplier"`
}

// Config holds the pricing tables. Order matters for both lists.
type Config struct {
	Brands            []BrandPrice      `yaml:"brands"`
	Conditions        []ConditionFactor `yaml:"conditions"`
	DefaultBasePrice  int               `yaml:"defaultBasePrice"`
	DefaultMultiplier float64           `yaml:"defaultMultiplier"`
	// PremiumThreshold is the base price above which the sell-probability
	// bonus applies.
	PremiumThreshold int `yaml:"premiumThreshold"`
	PremiumBonus     int `yaml:"premiumBonus"`
}

// DefaultConfig returns the built-in pricing tables.
func DefaultConfig() Config {
	return Config{
		Brands: []BrandPrice{
			{Keyword: "patagonia", BasePrice: 80},
			{Keyword: "north face", BasePrice: 70},
			{Keyword: "carhartt", BasePrice: 60},
			{Keyword: "ralph lauren", BasePrice: 55},
			{Keyword: "nike", BasePrice: 45},
			{Keyword: "adidas", BasePrice: 40},
			{Keyword: "tommy", BasePrice: 40},
			{Keyword: "levi", BasePrice: 35},
			{Keyword: "uniqlo", BasePrice: 25},
			{Keyword: "zara", BasePrice: 20},
			{Keyword: "h&m", BasePrice: 12},
		},
		Conditions: []ConditionFactor{
			{Keyword: "new with tags", Multiplier: 1.5},
			{Keyword: "like new", Multiplier: 1.25},
			{Keyword: "good", Multiplier: 1.0},
			{Keyword: "fair", Multiplier: 0.7},
			{Keyword: "poor", Multiplier: 0.45},
		},
		DefaultBasePrice:  18,
		DefaultMultiplier: 1.0,
		PremiumThreshold:  50,
		PremiumBonus:      8,
	}
}

// LoadConfig reads pricing tables from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read pricing config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse pricing config: %w", err)
	}
	return cfg, nil
}

// Estimator derives a price estimate from brand and condition. Repeated
// calls with identical input are non-deterministic by design: a small random
// jitter is mixed in, and only the documented bounds hold.
type Estimator struct {
	cfg Config
}

func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate computes the price/probability estimate.
// Guarantees: MaxProfitPrice >= 3, QuickSellPrice >= 2,
// QuickSellPrice <= MaxProfitPrice and 15 <= SellProbability <= 99.
func (e *Estimator) Estimate(brand, condition string) Estimate {
	basePrice := e.basePrice(brand)
	multiplier := e.multiplier(condition)

	jitter := rand.IntN(7) - 3 // [-3, 3]
	maxProfit := int(math.Round(float64(basePrice)*multiplier)) + jitter
	if maxProfit < 3 {
		maxProfit = 3
	}

	quickSell := int(math.Round(float64(maxProfit) * 0.65))
	if quickSell < 2 {
		quickSell = 2
	}

	bonus := 0
	if basePrice > e.cfg.PremiumThreshold {
		bonus = e.cfg.PremiumBonus
	}
	probJitter := rand.IntN(17) - 8 // [-8, 8]
	probability := clamp(15, 99, int(math.Round(60*multiplier))+probJitter+bonus)

	return Estimate{
		QuickSellPrice:  quickSell,
		MaxProfitPrice:  maxProfit,
		SellProbability: probability,
	}
}

func (e *Estimator) basePrice(brand string) int {
	normalized := strings.ToLower(brand)
	for _, b := range e.cfg.Brands {
		if strings.Contains(normalized, b.Keyword) {
			return b.BasePrice
		}
	}
	return e.cfg.DefaultBasePrice
}

func (e *Estimator) multiplier(condition string) float64 {
	normalized := strings.ToLower(condition)
	for _, c := range e.cfg.Conditions {
		if strings.Contains(normalized, c.Keyword) {
			return c.Multiplier
		}
	}
	return e.cfg.DefaultMultiplier
}

func clamp(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
