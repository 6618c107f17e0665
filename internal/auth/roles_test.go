package auth

import (
	"slices"
	"testing"
)

func TestClosureTable_IsTotalAndClosed(t *testing.T) {
	for _, r := range ValidRoles {
		closure := Closure(r)
		if closure == nil {
			t.Fatalf("Closure(%q) = nil, every valid role needs an entry", r)
		}
		if !slices.Contains(closure, r) {
			t.Errorf("Closure(%q) does not contain itself", r)
		}
		for _, implied := range closure {
			for _, transitive := range Closure(implied) {
				if !slices.Contains(closure, transitive) {
					t.Errorf("Closure(%q) contains %q but not %q from its closure", r, implied, transitive)
				}
			}
		}
	}

	if len(Hierarchy()) != len(ValidRoles) {
		t.Errorf("Hierarchy() has %d entries, want %d", len(Hierarchy()), len(ValidRoles))
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		assigned []Role
		want     []Role
	}{
		{"none", nil, []Role{}},
		{"user", []Role{RoleUser}, []Role{RoleUser}},
		{"finance", []Role{RoleFinance}, []Role{RoleUser, RoleAnalyst, RoleFinance}},
		{"management", []Role{RoleManagement}, []Role{RoleUser, RoleDeveloper, RoleAnalyst, RoleManagement}},
		{"executive", []Role{RoleExecutive}, []Role{RoleUser, RoleDeveloper, RoleAnalyst, RoleFinance, RoleManagement, RoleExecutive}},
		{"admin", []Role{RoleAdmin}, ValidRoles},
		{"union", []Role{RoleSecurity, RoleDeveloper}, []Role{RoleUser, RoleDeveloper, RoleSecurity}},
		{"unknown dropped", []Role{"root", RoleAnalyst}, []Role{RoleUser, RoleAnalyst}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.assigned).Sorted()
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expand(%v) = %v, want %v", tt.assigned, got, tt.want)
			}
		})
	}
}

func TestExpand_AdminSatisfiesEveryRole(t *testing.T) {
	effective := Expand([]Role{RoleAdmin})
	for _, r := range ValidRoles {
		if !Authorize(effective, []Role{r}) {
			t.Errorf("admin should satisfy requirement %q", r)
		}
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		assigned []Role
		required []Role
		want     bool
	}{
		{"empty requirement", []Role{RoleUser}, nil, true},
		{"empty requirement no roles", nil, []Role{}, true},
		{"direct match", []Role{RoleSecurity}, []Role{RoleSecurity}, true},
		{"inherited match", []Role{RoleFinance}, []Role{RoleAnalyst}, true},
		{"any of", []Role{RoleDeveloper}, []Role{RoleFinance, RoleDeveloper}, true},
		{"no match", []Role{RoleFinance}, []Role{RoleSecurity}, false},
		{"sibling not implied", []Role{RoleSecurity}, []Role{RoleExecutive}, false},
		{"executive lacks security", []Role{RoleExecutive}, []Role{RoleSecurity}, false},
		{"user lacks developer", []Role{RoleUser}, []Role{RoleDeveloper}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(Expand(tt.assigned), tt.required); got != tt.want {
				t.Errorf("Authorize(%v, %v) = %v, want %v", tt.assigned, tt.required, got, tt.want)
			}
		})
	}
}

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []Role
	}{
		{"empty", "", []Role{RoleUser}},
		{"whitespace", "  ,  ", []Role{RoleUser}},
		{"single", "admin", []Role{RoleAdmin}},
		{"trim and lower", " Finance , SECURITY ", []Role{RoleFinance, RoleSecurity}},
		{"unknown filtered", "root,analyst,superuser", []Role{RoleAnalyst}},
		{"only unknown", "root", []Role{RoleUser}},
		{"duplicates keep first", "developer,user,Developer", []Role{RoleDeveloper, RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRoles(tt.csv); !slices.Equal(got, tt.want) {
				t.Errorf("ParseRoles(%q) = %v, want %v", tt.csv, got, tt.want)
			}
		})
	}
}

func TestClosure_ReturnsCopy(t *testing.T) {
	c := Closure(RoleFinance)
	c[0] = RoleAdmin

	if Closure(RoleFinance)[0] != RoleFinance {
		t.Error("mutating Closure() result must not change the table")
	}
	if Closure("root") != nil {
		t.Error("Closure() of unknown role should be nil")
	}
}
