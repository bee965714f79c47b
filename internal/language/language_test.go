package language

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"EN", "en"},
		{" en-US ", "en"},
		{"pt-BR", "pt"},
		{"english", "en"},
		{"Japanese", "ja"},
		{"zh-Hans", "zh"},
		{"", ""},
		{"not-a-language", ""},
		{"??", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("en"); got != "English" {
		t.Fatalf("DisplayName(en) = %q", got)
	}
	if got := DisplayName("pt-BR"); got != "Portuguese" {
		t.Fatalf("DisplayName(pt-BR) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName empty = %q", got)
	}
	if got := DisplayName("zz-invalid"); got != "Unknown" {
		t.Fatalf("DisplayName invalid = %q", got)
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"en-US", "EN", "spanish", "bogus!!", "es"})
	want := []string{"en", "es"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeList = %v, want %v", got, want)
		}
	}
	if NormalizeList(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
