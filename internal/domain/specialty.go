package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Specialty is a skill a booster offers and a job may require.
type Specialty string

const (
	SpecialtyMakeup    Specialty = "makeup"
	SpecialtyHair      Specialty = "hair"
	SpecialtySFX       Specialty = "sfx"
	SpecialtyBridal    Specialty = "bridal"
	SpecialtyNails     Specialty = "nails"
	SpecialtyBrows     Specialty = "brows"
	SpecialtyLashes    Specialty = "lashes"
	SpecialtySpraytan  Specialty = "spraytan"
	SpecialtyBodypaint Specialty = "bodypaint"
)

var knownSpecialties = map[Specialty]struct{}{
	SpecialtyMakeup:    {},
	SpecialtyHair:      {},
	SpecialtySFX:       {},
	SpecialtyBridal:    {},
	SpecialtyNails:     {},
	SpecialtyBrows:     {},
	SpecialtyLashes:    {},
	SpecialtySpraytan:  {},
	SpecialtyBodypaint: {},
}

// Intake sources (booking form, Shopify tags) spell skills loosely.
var specialtyAliases = map[string]Specialty{
	"make-up":         SpecialtyMakeup,
	"make up":         SpecialtyMakeup,
	"styling":         SpecialtyHair,
	"hairstyling":     SpecialtyHair,
	"special effects": SpecialtySFX,
	"special-effects": SpecialtySFX,
	"spray tan":       SpecialtySpraytan,
	"spray-tan":       SpecialtySpraytan,
	"body paint":      SpecialtyBodypaint,
	"body-paint":      SpecialtyBodypaint,
	"lash extensions": SpecialtyLashes,
	"bridal makeup":   SpecialtyBridal,
	"wedding":         SpecialtyBridal,
}

// ParseSpecialty normalizes a raw tag into a known Specialty.
func ParseSpecialty(raw string) (Specialty, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := specialtyAliases[key]; ok {
		return s, nil
	}
	s := Specialty(key)
	if _, ok := knownSpecialties[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpecialty, raw)
	}
	return s, nil
}

// ParseSpecialties parses every tag, dropping duplicates.
func ParseSpecialties(raw []string) (SpecialtySet, error) {
	out := make(SpecialtySet, 0, len(raw))
	for _, r := range raw {
		s, err := ParseSpecialty(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out.Normalize(), nil
}

// SpecialtySet is an unordered set of specialties.
type SpecialtySet []Specialty

// Normalize returns a sorted copy without duplicates.
func (s SpecialtySet) Normalize() SpecialtySet {
	seen := make(map[Specialty]struct{}, len(s))
	out := make(SpecialtySet, 0, len(s))
	for _, sp := range s {
		if _, ok := seen[sp]; ok {
			continue
		}
		seen[sp] = struct{}{}
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether sp is in the set.
func (s SpecialtySet) Has(sp Specialty) bool {
	for _, v := range s {
		if v == sp {
			return true
		}
	}
	return false
}

// Covers reports whether every required specialty is in s.
// An empty requirement places no constraint.
func (s SpecialtySet) Covers(required SpecialtySet) bool {
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Strings returns the set as plain strings, for storage.
func (s SpecialtySet) Strings() []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}
