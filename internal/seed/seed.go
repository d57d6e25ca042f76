// Package seed loads booster directory and discount fixtures from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed dev.yaml
var devFixture []byte

// Fixture is the root of a seed file.
type Fixture struct {
	Boosters       []BoosterFixture        `yaml:"boosters"`
	Unavailability []UnavailabilityFixture `yaml:"unavailability"`
	Discounts      []DiscountFixture       `yaml:"discounts"`
}

type BoosterFixture struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Specialties []string `yaml:"specialties"` // aliases such as "make-up" are accepted
	Address     string   `yaml:"address"`
	Lat         float64  `yaml:"lat"`
	Lng         float64  `yaml:"lng"`
	RadiusKm    float64  `yaml:"radius_km"`
	Rating      float64  `yaml:"rating"`
	ReviewCount int      `yaml:"review_count"`
	Active      *bool    `yaml:"active"` // defaults to true
}

type UnavailabilityFixture struct {
	BoosterID string    `yaml:"booster_id"`
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`
	Reason    string    `yaml:"reason"`
}

type DiscountFixture struct {
	Code           string     `yaml:"code"`
	Kind           string     `yaml:"kind"`  // "percent" or "fixed"
	Value          int64      `yaml:"value"` // basis points or minor units
	Active         *bool      `yaml:"active"`
	ExpiresAt      *time.Time `yaml:"expires_at"`
	MinAmountMinor int64      `yaml:"min_amount_minor"`
	MaxRedemptions *int       `yaml:"max_redemptions"`
	MaxPerCustomer *int       `yaml:"max_per_customer"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Boosters       int
	Unavailability int
	Discounts      int
}

// Default returns the development fixture compiled into the binary.
func Default() (Fixture, error) {
	return Parse(bytes.NewReader(devFixture))
}

func LoadFile(path string) (Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(r io.Reader) (Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("decode seed: %w", err)
	}
	return fx, nil
}

// Apply validates every record and writes it through w. Boosters go first so
// unavailability rows can reference them.
func Apply(ctx context.Context, w app.DirectoryWriter, fx Fixture) (Summary, error) {
	var sum Summary
	for i, bf := range fx.Boosters {
		b, err := bf.booster()
		if err != nil {
			return sum, fmt.Errorf("booster %d (%s): %w", i, bf.ID, err)
		}
		if err := w.UpsertBooster(ctx, b); err != nil {
			return sum, fmt.Errorf("booster %s: %w", bf.ID, err)
		}
		sum.Boosters++
	}
	for i, uf := range fx.Unavailability {
		u := domain.Unavailability{
			BoosterID: uf.BoosterID,
			Window:    domain.TimeWindow{Start: uf.Start, End: uf.End},
			Reason:    uf.Reason,
		}
		if !u.Window.Valid() {
			return sum, fmt.Errorf("unavailability %d: %w", i, domain.ErrInvalidWindow)
		}
		if err := w.AddUnavailability(ctx, u); err != nil {
			return sum, fmt.Errorf("unavailability %d (%s): %w", i, uf.BoosterID, err)
		}
		sum.Unavailability++
	}
	for _, df := range fx.Discounts {
		d, err := df.discount()
		if err != nil {
			return sum, fmt.Errorf("discount %s: %w", df.Code, err)
		}
		if err := w.UpsertDiscount(ctx, d); err != nil {
			return sum, fmt.Errorf("discount %s: %w", df.Code, err)
		}
		sum.Discounts++
	}
	return sum, nil
}

func (bf BoosterFixture) booster() (domain.Booster, error) {
	if bf.ID == "" {
		return domain.Booster{}, domain.ErrInvalidID
	}
	specialties, err := domain.ParseSpecialties(bf.Specialties)
	if err != nil {
		return domain.Booster{}, err
	}
	return domain.Booster{
		ID:          bf.ID,
		Name:        bf.Name,
		Specialties: specialties,
		Location:    domain.Location{Address: bf.Address, Lat: bf.Lat, Lng: bf.Lng},
		RadiusKm:    bf.RadiusKm,
		Rating:      bf.Rating,
		ReviewCount: bf.ReviewCount,
		Active:      bf.Active == nil || *bf.Active,
	}, nil
}

func (df DiscountFixture) discount() (domain.DiscountCode, error) {
	code := app.NormalizeCode(df.Code)
	if code == "" {
		return domain.DiscountCode{}, domain.ErrDiscountNotFound
	}
	kind := domain.DiscountKind(df.Kind)
	switch kind {
	case domain.DiscountKindPercent:
		if df.Value < 0 || df.Value > 10000 {
			return domain.DiscountCode{}, fmt.Errorf("percent value %d out of range", df.Value)
		}
	case domain.DiscountKindFixed:
		if df.Value < 0 {
			return domain.DiscountCode{}, fmt.Errorf("fixed value %d is negative", df.Value)
		}
	default:
		return domain.DiscountCode{}, fmt.Errorf("unknown discount kind %q", df.Kind)
	}
	return domain.DiscountCode{
		Code:           code,
		Kind:           kind,
		Value:          df.Value,
		Active:         df.Active == nil || *df.Active,
		ExpiresAt:      df.ExpiresAt,
		MinAmountMinor: df.MinAmountMinor,
		MaxRedemptions: df.MaxRedemptions,
		MaxPerCustomer: df.MaxPerCustomer,
	}, nil
}
