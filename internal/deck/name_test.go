package deck

import "testing"

func TestNormalize(t *testing.T) {
	cases := [][2]string{
		{"Fire // Ice", "Fire"},
		{"Delver of Secrets // Insectile Aberration", "Delver of Secrets"},
		{"Lightning Bolt", "Lightning Bolt"},
		{"Who/What/When/Where/Why", "Who/What/When/Where/Why"},
	}
	for _, c := range cases {
		if got := Normalize(c[0]); got != c[1] {
			t.Fatalf("Normalize(%q)：期望 %q，实际 %q", c[0], c[1], got)
		}
	}
}

func TestIsBasicLand(t *testing.T) {
	for _, n := range []string{"Plains", "Island", "Swamp", "Mountain", "Forest"} {
		if !IsBasicLand(n) {
			t.Fatalf("期望 %q 是基本地", n)
		}
	}
	for _, n := range []string{"plains", "Snow-Covered Plains", "Lightning Bolt", ""} {
		if IsBasicLand(n) {
			t.Fatalf("不期望 %q 是基本地", n)
		}
	}
}
