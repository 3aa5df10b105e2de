package app

import (
	"testing"

	"klasquiz-service/internal/domain"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Amsterdam", "amsterdam"},
		{"  Amsterdam  ", "amsterdam"},
		{"Den   Haag", "den haag"},
		{"\tDen\nHaag ", "den haag"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"  Den   Haag ", "AMSTERDAM", "a b c"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestPointsFor(t *testing.T) {
	cases := map[string]int{
		domain.StatusCorrect: 10,
		domain.StatusTypo:    5,
		domain.StatusWrong:   0,
		domain.StatusUnknown: 0,
		"":                   0,
		"onzin":              0,
	}
	for status, want := range cases {
		if got := PointsFor(status); got != want {
			t.Errorf("PointsFor(%q) = %d, want %d", status, got, want)
		}
	}
}

func TestAutoGrade(t *testing.T) {
	cases := []struct {
		given      string
		correct    string
		wantStatus string
		wantPoints int
	}{
		{"Amsterdam", "amsterdam", domain.StatusCorrect, 10},
		{"  Den   Haag ", "Den Haag", domain.StatusCorrect, 10},
		{"Rotterdam", "Amsterdam", domain.StatusUnknown, 0},
		{"", "Amsterdam", domain.StatusUnknown, 0},
	}
	for _, c := range cases {
		status, points := AutoGrade(c.given, c.correct)
		if status != c.wantStatus || points != c.wantPoints {
			t.Errorf("AutoGrade(%q, %q) = (%q, %d), want (%q, %d)",
				c.given, c.correct, status, points, c.wantStatus, c.wantPoints)
		}
	}
}

// Auto-grading must never produce a definitive wrong verdict; that call
// belongs to the docent.
func TestAutoGradeNeverMarksWrong(t *testing.T) {
	pairs := [][2]string{
		{"fout antwoord", "goed antwoord"},
		{"", "x"},
		{"bijna goed", "bijna goed!"},
	}
	for _, p := range pairs {
		if status, _ := AutoGrade(p[0], p[1]); status == domain.StatusWrong {
			t.Errorf("AutoGrade(%q, %q) produced %q", p[0], p[1], status)
		}
	}
}

func TestValidGradeStatus(t *testing.T) {
	for _, status := range []string{domain.StatusCorrect, domain.StatusTypo, domain.StatusWrong, domain.StatusUnknown} {
		if !ValidGradeStatus(status) {
			t.Errorf("ValidGradeStatus(%q) = false", status)
		}
	}
	for _, status := range []string{"", "GOED", "perfect"} {
		if ValidGradeStatus(status) {
			t.Errorf("ValidGradeStatus(%q) = true", status)
		}
	}
}
