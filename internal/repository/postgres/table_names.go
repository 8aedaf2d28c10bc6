package postgres

import "fmt"

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Folders         string
	Documents       string
	Contents        string
	RoleAssignments string
	GroupMembers    string
	IndexEntries    string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Folders:         fmt.Sprintf("%sfolders", prefix),
		Documents:       fmt.Sprintf("%sdocuments", prefix),
		Contents:        fmt.Sprintf("%scontents", prefix),
		RoleAssignments: fmt.Sprintf("%srole_assignments", prefix),
		GroupMembers:    fmt.Sprintf("%sgroup_members", prefix),
		IndexEntries:    fmt.Sprintf("%sindex_entries", prefix),
	}
}
