package rbac

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type tableEntry struct {
	def  RoleDefinition
	perm map[Permission]struct{}
}

// Table is the immutable role to permission mapping. It is built once at
// process start and only read afterwards.
type Table struct {
	entries map[RoleName]tableEntry
	order   []RoleName
}

// NewTable validates the definitions and builds a lookup table. Every
// permission must be catalogued, names and ids must be unique and the
// SuperAdmin set must contain every other role's set.
func NewTable(defs []RoleDefinition) (*Table, error) {
	t := &Table{entries: make(map[RoleName]tableEntry, len(defs))}
	ids := make(map[string]bool, len(defs))

	for _, def := range defs {
		if def.ID == "" || def.Name == "" {
			return nil, fmt.Errorf("role definition requires id and name")
		}
		if _, dup := t.entries[def.Name]; dup {
			return nil, fmt.Errorf("duplicate role name: %s", def.Name)
		}
		if ids[def.ID] {
			return nil, fmt.Errorf("duplicate role id: %s", def.ID)
		}
		if err := ValidatePermissions(def.Permissions); err != nil {
			return nil, fmt.Errorf("role %s: %w", def.Name, err)
		}

		perms := NormalizePermissions(def.Permissions)
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		def.Permissions = perms

		ids[def.ID] = true
		t.entries[def.Name] = tableEntry{def: def, perm: set}
		t.order = append(t.order, def.Name)
	}

	if super, ok := t.entries[RoleSuperAdmin]; ok {
		for _, name := range t.order {
			for p := range t.entries[name].perm {
				if _, has := super.perm[p]; !has {
					return nil, fmt.Errorf("%s lacks %s granted to %s", RoleSuperAdmin, p, name)
				}
			}
		}
	}

	return t, nil
}

var defaultTable = mustTable(builtInRoles())

func mustTable(defs []RoleDefinition) *Table {
	t, err := NewTable(defs)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns the built-in role table
func DefaultTable() *Table {
	return defaultTable
}

// Roles returns the role definitions in table order
func (t *Table) Roles() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(t.order))
	for _, name := range t.order {
		def := t.entries[name].def
		def.Permissions = append([]Permission(nil), def.Permissions...)
		out = append(out, def)
	}
	return out
}

// Lookup returns the definition for a role name
func (t *Table) Lookup(name RoleName) (RoleDefinition, bool) {
	entry, ok := t.entries[name]
	if !ok {
		return RoleDefinition{}, false
	}
	def := entry.def
	def.Permissions = append([]Permission(nil), def.Permissions...)
	return def, true
}

// HasPermission reports whether the named role grants p. Unknown roles
// have no permissions.
func (t *Table) HasPermission(roleName string, p Permission) bool {
	entry, ok := t.entries[RoleName(roleName)]
	if !ok {
		return false
	}
	_, granted := entry.perm[p]
	return granted
}

// CanAccess composes resource and action into a token and checks it
func (t *Table) CanAccess(roleName string, resource Resource, action Action) bool {
	return t.HasPermission(roleName, NewPermission(resource, action))
}

// Permissions returns the sorted permission set of a role, or nil
func (t *Table) Permissions(roleName string) []Permission {
	entry, ok := t.entries[RoleName(roleName)]
	if !ok {
		return nil
	}
	return append([]Permission(nil), entry.def.Permissions...)
}

type tableFile struct {
	Roles []struct {
		Name        RoleName      `yaml:"name"`
		Description string        `yaml:"description"`
		Permissions *[]Permission `yaml:"permissions"`
	} `yaml:"roles"`
}

// LoadTable overlays descriptions and permission sets from a YAML file onto
// the built-in table. The file may only refer to existing role names.
//
//	roles:
//	  - name: Manager
//	    permissions: [users.read, files.read, dashboard.read]
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable is LoadTable on an in-memory document
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse role table: %w", err)
	}

	defs := builtInRoles()
	index := make(map[RoleName]int, len(defs))
	for i, def := range defs {
		index[def.Name] = i
	}

	for _, override := range file.Roles {
		i, ok := index[override.Name]
		if !ok {
			return nil, fmt.Errorf("unknown role in role table: %q", override.Name)
		}
		if override.Description != "" {
			defs[i].Description = override.Description
		}
		if override.Permissions != nil {
			defs[i].Permissions = *override.Permissions
		}
	}

	return NewTable(defs)
}

// NormalizePermissions returns a sorted copy with duplicates removed
func NormalizePermissions(perms []Permission) []Permission {
	seen := make(map[Permission]bool, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
