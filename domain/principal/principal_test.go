package principal

import "testing"

func TestParseRole(t *testing.T) {
	for _, s := range []string{"viewer", "planner", "admin"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
	}
	if _, err := ParseRole("root"); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestCanWrite(t *testing.T) {
	if RoleViewer.CanWrite() {
		t.Error("viewer must not write")
	}
	if !RolePlanner.CanWrite() {
		t.Error("planner must write")
	}
	if !RoleAdmin.CanWrite() {
		t.Error("admin must write")
	}
}

func TestCanRead(t *testing.T) {
	tests := []struct {
		role       Role
		restricted bool
		want       bool
	}{
		{RoleViewer, false, true},
		{RoleViewer, true, false},
		{RolePlanner, false, true},
		{RolePlanner, true, false},
		{RoleAdmin, false, true},
		{RoleAdmin, true, true},
		{Role("unknown"), false, false},
	}
	for _, tt := range tests {
		if got := tt.role.CanRead(tt.restricted); got != tt.want {
			t.Errorf("%s.CanRead(%v) = %v, want %v", tt.role, tt.restricted, got, tt.want)
		}
	}
}
