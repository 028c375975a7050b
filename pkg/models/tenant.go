package models

import (
	"fmt"
	"strings"
)

// Tenant identifies one site inside a shared database. In multi-tenant
// mode its tables are named "{base}{network}_{id}_{table}"; in single-tenant
// mode they are named "{base}{table}".
type Tenant struct {
	ID          int    `json:"id"`
	NetworkID   int    `json:"network_id"`
	BasePrefix  string `json:"base_prefix"`
	MultiTenant bool   `json:"multi_tenant"`
	// SharedTables are full table names visible to every tenant
	// (accounts, network registry).
	SharedTables []string `json:"shared_tables,omitempty"`
}

// Prefix returns the exact table-name prefix owned by this tenant.
func (t Tenant) Prefix() string {
	if !t.MultiTenant {
		return t.BasePrefix
	}
	return fmt.Sprintf("%s%d_%d_", t.BasePrefix, t.NetworkID, t.ID)
}

// Table returns the tenant-owned physical name for a logical table suffix,
// or the shared name when the suffix is a shared table.
func (t Tenant) Table(suffix string) string {
	shared := t.BasePrefix + suffix
	if t.IsShared(shared) {
		return shared
	}
	return t.Prefix() + suffix
}

// IsShared reports whether name is one of the tenant-exempt tables.
func (t Tenant) IsShared(name string) bool {
	for _, s := range t.SharedTables {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Owns reports whether a table belongs to the tenant's scope.
func (t Tenant) Owns(name string) bool {
	return strings.HasPrefix(name, t.Prefix()) || t.IsShared(name)
}

// Suffix strips the tenant or base prefix from a table name.
func (t Tenant) Suffix(name string) string {
	if strings.HasPrefix(name, t.Prefix()) {
		return name[len(t.Prefix()):]
	}
	return strings.TrimPrefix(name, t.BasePrefix)
}
