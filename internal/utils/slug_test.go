package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Vaccination", "vaccination"},
		{"Wellness Exam", "wellness-exam"},
		{"Spay & Neuter", "spay-and-neuter"},
		{"Dental Cleaning / Polishing", "dental-cleaning-polishing"},
		{"  Deworming  ", "deworming"},
		{"X-Ray (Radiograph)", "x-ray-radiograph"},
	}
	for _, tc := range tests {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
