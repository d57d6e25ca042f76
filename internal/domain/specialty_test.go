package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSpecialty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Specialty
		wantErr bool
	}{
		{raw: "makeup", want: SpecialtyMakeup},
		{raw: "  Make-Up ", want: SpecialtyMakeup},
		{raw: "Special Effects", want: SpecialtySFX},
		{raw: "SFX", want: SpecialtySFX},
		{raw: "wedding", want: SpecialtyBridal},
		{raw: "spray tan", want: SpecialtySpraytan},
		{raw: "juggling", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSpecialty(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownSpecialty) {
					t.Fatalf("expected ErrUnknownSpecialty, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseSpecialties_SortsAndDedupes(t *testing.T) {
	t.Parallel()

	got, err := ParseSpecialties([]string{"sfx", "makeup", "special effects", "Make up"})
	require.NoError(t, err)
	require.Equal(t, SpecialtySet{SpecialtyMakeup, SpecialtySFX}, got)

	_, err = ParseSpecialties([]string{"makeup", "tattoo"})
	require.ErrorIs(t, err, ErrUnknownSpecialty)
}

func TestSpecialtySet_Covers(t *testing.T) {
	t.Parallel()

	makeupOnly := SpecialtySet{SpecialtyMakeup}
	full := SpecialtySet{SpecialtyMakeup, SpecialtySFX}
	required := SpecialtySet{SpecialtyMakeup, SpecialtySFX}

	require.False(t, makeupOnly.Covers(required), "a partial match does not qualify")
	require.True(t, full.Covers(required))
	require.True(t, SpecialtySet{SpecialtySFX, SpecialtyMakeup, SpecialtyHair}.Covers(required))
	require.True(t, makeupOnly.Covers(nil), "no requirement places no constraint")
	require.False(t, SpecialtySet(nil).Covers(makeupOnly))
}
