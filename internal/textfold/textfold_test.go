package textfold

import "testing"

func TestFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii upper", "  TOYOTA ", "toyota"},
		{"full width ascii", "ＴＯＹＯＴＡ", "toyota"},
		{"full width digits", "１２０", "120"},
		{"half width katakana", "ﾄﾖﾀ", "トヨタ"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Fold(tt.in); got != tt.want {
				t.Fatalf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldsSplitsIdeographicSpace(t *testing.T) {
	t.Parallel()

	got := Fields("トヨタ　プリウス  東京")
	if len(got) != 3 || got[0] != "トヨタ" || got[1] != "プリウス" || got[2] != "東京" {
		t.Fatalf("unexpected fields: %q", got)
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	if !Contains("Toyota Prius S", "PRIUS") {
		t.Fatal("expected case-insensitive match")
	}
	if !Contains("ﾌﾟﾘｳｽ", "プリウス") {
		t.Fatal("expected width-insensitive match")
	}
	if Contains("Honda Fit", "prius") {
		t.Fatal("unexpected match")
	}
}
