package coverage

import (
	"testing"

	"github.com/abhisek/skilltrack/internal/skillgraph"
	"github.com/abhisek/skilltrack/internal/store"
)

func leaves(ids ...string) []skillgraph.Skill {
	out := make([]skillgraph.Skill, len(ids))
	for i, id := range ids {
		out[i] = skillgraph.Skill{ID: id, Name: id}
	}
	return out
}

func verified(ids ...string) []store.VerifiedSkill {
	out := make([]store.VerifiedSkill, len(ids))
	for i, id := range ids {
		out[i] = store.VerifiedSkill{SkillID: id, SkillName: id, Verified: true}
	}
	return out
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		verified []store.VerifiedSkill
		required []skillgraph.Skill
		want     float64
	}{
		{"none verified", nil, leaves("a", "b"), 0},
		{"half", verified("a"), leaves("a", "b"), 50},
		{"all", verified("a", "b"), leaves("a", "b"), 100},
		{"thirds round to two decimals", verified("a"), leaves("a", "b", "c"), 33.33},
		{"two thirds", verified("a", "b"), leaves("a", "b", "c"), 66.67},
		{"unverified entries ignored", []store.VerifiedSkill{{SkillID: "a", Verified: false}}, leaves("a"), 0},
		{"skills outside required set ignored", verified("a", "zzz"), leaves("a", "b"), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.verified, tt.required); got != tt.want {
				t.Errorf("Calculate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculate_ZeroRequiredIsZero(t *testing.T) {
	if got := Calculate(verified("a", "b", "c"), nil); got != 0 {
		t.Errorf("Calculate with no required skills = %v, want 0", got)
	}
	if got := Percentage(5, 0); got != 0 {
		t.Errorf("Percentage(5, 0) = %v, want 0", got)
	}
}

func TestMapToProficiency_Boundaries(t *testing.T) {
	tests := []struct {
		coverage float64
		want     Level
	}{
		{0, LevelBeginner},
		{39.99, LevelBeginner},
		{40, LevelIntermediate},
		{59.99, LevelIntermediate},
		{60, LevelAdvanced},
		{79.99, LevelAdvanced},
		{80, LevelExpert},
		{100, LevelExpert},
	}
	for _, tt := range tests {
		if got := MapToProficiency(tt.coverage); got != tt.want {
			t.Errorf("MapToProficiency(%v) = %s, want %s", tt.coverage, got, tt.want)
		}
	}
}

func TestMapToProficiency_Monotonic(t *testing.T) {
	rank := map[Level]int{LevelBeginner: 0, LevelIntermediate: 1, LevelAdvanced: 2, LevelExpert: 3}
	prev := rank[MapToProficiency(0)]
	for c := 0.0; c <= 100; c += 0.25 {
		r, ok := rank[MapToProficiency(c)]
		if !ok {
			t.Fatalf("MapToProficiency(%v) returned unknown level", c)
		}
		if r < prev {
			t.Fatalf("MapToProficiency not monotonic at %v", c)
		}
		prev = r
	}
}
