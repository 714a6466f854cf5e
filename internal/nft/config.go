package nft

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Metaplex on-chain field limits (bytes).
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200

	MaxRoyaltyBasisPoints = 10000
)

const (
	DefaultDisplayName = "Art"
	DefaultDescription = "Random AI Art"
	DefaultSymbol      = "AIART"
	DefaultRoyaltyBPS  = 500 // 5%
	ImageMimeType      = "image/png"
)

// Traits is what the language model contributes to a token.
type Traits struct {
	Title       string `json:"one_word_title"`
	Description string `json:"description"`
	Mood        string `json:"mood"`
	Haiku       string `json:"haiku"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type Creator struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// TokenConfig describes one token to publish and mint.
type TokenConfig struct {
	ImageFileName      string
	ImageMimeType      string
	DisplayName        string
	Description        string
	Attributes         []Attribute
	RoyaltyBasisPoints int
	Symbol             string
	Creators           []Creator
}

// Defaults are the fixed parts of every TokenConfig.
type Defaults struct {
	Symbol             string
	RoyaltyBasisPoints int
	Creators           []Creator
}

// BuildConfig merges model output with the fixed defaults.
func BuildConfig(traits Traits, defaults Defaults, imageFileName string) TokenConfig {
	symbol := firstNonEmpty(defaults.Symbol, DefaultSymbol)

	creators := make([]Creator, len(defaults.Creators))
	copy(creators, defaults.Creators)

	return TokenConfig{
		ImageFileName: imageFileName,
		ImageMimeType: ImageMimeType,
		DisplayName:   clip(firstNonEmpty(traits.Title, DefaultDisplayName), MaxNameLength),
		Description:   firstNonEmpty(traits.Description, DefaultDescription),
		Attributes: []Attribute{
			{TraitType: "Mood", Value: strings.TrimSpace(traits.Mood)},
			{TraitType: "Haiku", Value: strings.TrimSpace(traits.Haiku)},
		},
		RoyaltyBasisPoints: defaults.RoyaltyBasisPoints,
		Symbol:             clip(symbol, MaxSymbolLength),
		Creators:           creators,
	}
}

func (c TokenConfig) Validate() error {
	if strings.TrimSpace(c.DisplayName) == "" {
		return errors.New("display name is required")
	}
	if len(c.DisplayName) > MaxNameLength {
		return fmt.Errorf("display name exceeds %d bytes", MaxNameLength)
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if len(c.Symbol) > MaxSymbolLength {
		return fmt.Errorf("symbol exceeds %d bytes", MaxSymbolLength)
	}
	if c.RoyaltyBasisPoints < 0 || c.RoyaltyBasisPoints > MaxRoyaltyBasisPoints {
		return fmt.Errorf("royalty basis points %d out of range 0..%d", c.RoyaltyBasisPoints, MaxRoyaltyBasisPoints)
	}
	return ValidateCreators(c.Creators)
}

// ValidateCreators checks that at least one creator exists and shares total 100.
func ValidateCreators(creators []Creator) error {
	if len(creators) == 0 {
		return errors.New("at least one creator is required")
	}
	total := 0
	for _, cr := range creators {
		if strings.TrimSpace(cr.Address) == "" {
			return errors.New("creator address is required")
		}
		if cr.Share < 0 || cr.Share > 100 {
			return fmt.Errorf("creator share %d out of range", cr.Share)
		}
		total += cr.Share
	}
	if total != 100 {
		return fmt.Errorf("creator shares sum to %d, want 100", total)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
