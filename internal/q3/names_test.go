package q3

import "testing"

func TestNames(t *testing.T) {
	input := []string{
		"^1Red^7Player",
		"Plain",
		"trailing^",
		"^^12",
		" ^3Padawan^7 ",
		"caf\xe9",
	}
	stripped := []string{
		"RedPlayer",
		"Plain",
		"trailing^",
		"12",
		" Padawan ",
		"caf\xe9",
	}
	cleaned := []string{
		"RedPlayer",
		"Plain",
		"trailing^",
		"12",
		"Padawan",
		"café",
	}

	for n, in := range input {
		if got := StripColors(in); got != stripped[n] {
			t.Fatalf("StripColors(%q) = %q, want %q", in, got, stripped[n])
		}
		if got := CleanName(in); got != cleaned[n] {
			t.Fatalf("CleanName(%q) = %q, want %q", in, got, cleaned[n])
		}
	}
}

func TestGameTypeName(t *testing.T) {
	input := []string{"0", "3", "8", "9", "42", "ctf", ""}
	expected := []string{"FFA", "Duel", "Capture the Flag", "Capture the Ysalamiri", "42", "ctf", ""}

	for n, in := range input {
		if got := GameTypeName(in); got != expected[n] {
			t.Fatalf("GameTypeName(%q) = %q, want %q", in, got, expected[n])
		}
	}
}
