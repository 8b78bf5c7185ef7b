package domain

import "testing"

func testUserSet() *UserSet {
	return NewUserSet([]UserProfile{
		{Name: "Mahan", Color: "yellow"},
		{Name: "jojo", Color: "purple"},
	})
}

func TestUserSet_Resolve(t *testing.T) {
	users := testUserSet()

	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"mahan", "mahan", true},
		{"Mahan", "mahan", true},
		{"  MAHAN  ", "mahan", true},
		{"jojo", "jojo", true},
		{"sam", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		profile, ok := users.Resolve(c.input)
		if ok != c.ok {
			t.Errorf("Resolve(%q): expected ok=%v, got %v", c.input, c.ok, ok)
			continue
		}
		if ok && profile.Name != c.want {
			t.Errorf("Resolve(%q): expected name %q, got %q", c.input, c.want, profile.Name)
		}
	}

	if profile, _ := users.Resolve("mahan"); profile.Color != "yellow" {
		t.Errorf("Expected mahan's color yellow, got %q", profile.Color)
	}
}

func TestUserSet_Partner(t *testing.T) {
	users := testUserSet()

	partner, ok := users.Partner("Mahan")
	if !ok || partner.Name != "jojo" {
		t.Errorf("Expected mahan's partner jojo, got %q (ok=%v)", partner.Name, ok)
	}
	partner, ok = users.Partner("jojo")
	if !ok || partner.Name != "mahan" {
		t.Errorf("Expected jojo's partner mahan, got %q (ok=%v)", partner.Name, ok)
	}
}

func TestUserSet_Names(t *testing.T) {
	names := testUserSet().Names()
	if len(names) != 2 || names[0] != "mahan" || names[1] != "jojo" {
		t.Errorf("Expected normalized names [mahan jojo], got %v", names)
	}
}
