package models

import "sort"

// Role names recognized by the security inheritance engine.
type Role string

const (
	RoleReader  Role = "reader"
	RoleWriter  Role = "writer"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// PrincipalKind distinguishes direct user grants from group grants. Group
// membership and direct grants are tracked separately; the inheritance
// engine's rescue step depends on knowing which is which.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalGroup PrincipalKind = "group"
)

// AdminPrincipal is the non-persisted universal role token. It is appended
// to every effective-principal set and never stored as an assignment.
const AdminPrincipal = "admin"

// RoleAssignment is a (principal, role, node) grant, persisted
// independently of the tree and destroyed with its node.
type RoleAssignment struct {
	ID            string        `json:"id" db:"id"`
	NodeID        string        `json:"node_id" db:"node_id"`
	Principal     string        `json:"principal" db:"principal"`
	PrincipalKind PrincipalKind `json:"principal_kind" db:"principal_kind"`
	Role          Role          `json:"role" db:"role"`
}

// PrincipalSet is a flat set of principal identifiers (users and groups).
type PrincipalSet map[string]struct{}

func NewPrincipalSet(principals ...string) PrincipalSet {
	s := make(PrincipalSet, len(principals))
	for _, p := range principals {
		s[p] = struct{}{}
	}
	return s
}

func (s PrincipalSet) Add(p string)      { s[p] = struct{}{} }
func (s PrincipalSet) Has(p string) bool { _, ok := s[p]; return ok }

func (s PrincipalSet) Clone() PrincipalSet {
	c := make(PrincipalSet, len(s))
	for p := range s {
		c[p] = struct{}{}
	}
	return c
}

// Sorted returns the set as a deterministic token list, the form baked
// into index documents for search-time filtering.
func (s PrincipalSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
