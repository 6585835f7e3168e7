package types

import "testing"

func TestUsername_Valid(t *testing.T) {
	cases := []struct {
		name string
		u    Username
		want bool
	}{
		{"empty", "", false},
		{"alphanumeric", "alice42", true},
		{"upper and lower", "Bob2", true},
		{"hyphen rejected", "al-ice", false},
		{"space rejected", "al ice", false},
		{"unicode rejected", "alíce", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.u.Valid(); got != tc.want {
				t.Errorf("Username(%q).Valid() = %v, want %v", tc.u, got, tc.want)
			}
		})
	}
}
