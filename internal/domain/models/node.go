package models

import (
	"time"
)

// NodeKind discriminates the two node types of the content tree.
type NodeKind string

const (
	NodeKindFolder   NodeKind = "folder"
	NodeKindDocument NodeKind = "document"
)

type Folder struct {
	ID              string    `json:"id" db:"id"`
	ParentID        *string   `json:"parent_id" db:"parent_id"` // NULL = root
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	InheritSecurity bool      `json:"inherit_security" db:"inherit_security"`
	Path            string    `json:"path,omitempty"` // Computed display path, not stored in DB
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether this folder is the tree root (no parent).
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// ScanStatus is the antivirus verdict stored on a document.
type ScanStatus string

const (
	ScanStatusOK       ScanStatus = "ok"
	ScanStatusInfected ScanStatus = "infected"
	ScanStatusUnknown  ScanStatus = "unknown"
)

type Document struct {
	ID            string  `json:"id" db:"id"`
	FolderID      string  `json:"folder_id" db:"folder_id"`
	Title         string  `json:"title" db:"title"`
	Description   string  `json:"description" db:"description"`
	ContentDigest *string `json:"content_digest" db:"content_digest"`
	ContentType   string  `json:"content_type" db:"content_type"`
	ContentLength int64   `json:"content_length" db:"content_length"`

	// Derived artifacts - each optional, produced best-effort by the
	// content pipeline. A missing artifact never blocks the document.
	PDF           []byte                 `json:"-" db:"pdf"`
	TextContent   *string                `json:"text_content" db:"text_content"`
	Preview       []byte                 `json:"-" db:"preview"`
	ExtraMetadata map[string]interface{} `json:"extra_metadata" db:"extra_metadata"`
	Language      string                 `json:"language" db:"language"`

	Lock *Lock `json:"lock,omitempty"`

	Scanned    bool       `json:"scanned" db:"av_scanned"`
	ScanStatus ScanStatus `json:"scan_status" db:"av_status"`

	Path      string    `json:"path,omitempty"` // Computed display path, not stored in DB
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Safe reports whether the document may be served to callers: anything
// except a positive infected verdict.
func (d *Document) Safe() bool {
	return d.ScanStatus != ScanStatusInfected
}

// Lock is the advisory checkout marker stored on a document. It is a value,
// created and cleared atomically with the document row it protects.
type Lock struct {
	OwnerID   string    `json:"owner_id" db:"lock_owner_id"`
	OwnerName string    `json:"owner_name" db:"lock_owner_name"`
	CreatedAt time.Time `json:"created_at" db:"lock_created_at"`
}

// Valid reports whether the lock is still live at now, given the
// deployment-wide lock lifetime. An expired lock is simply ignored.
func (l *Lock) Valid(now time.Time, lifetime time.Duration) bool {
	if l == nil {
		return false
	}
	return now.Sub(l.CreatedAt) <= lifetime
}

// IsOwner reports whether userID holds this lock.
func (l *Lock) IsOwner(userID string) bool {
	return l != nil && l.OwnerID == userID
}

// Node wraps either a Folder or a Document, for operations that work on
// both (path resolution, copy, move, delete).
type Node struct {
	Kind     NodeKind
	Folder   *Folder
	Document *Document
}

func FolderNode(f *Folder) *Node   { return &Node{Kind: NodeKindFolder, Folder: f} }
func DocumentNode(d *Document) *Node { return &Node{Kind: NodeKindDocument, Document: d} }

func (n *Node) ID() string {
	if n.Kind == NodeKindFolder {
		return n.Folder.ID
	}
	return n.Document.ID
}

func (n *Node) Title() string {
	if n.Kind == NodeKindFolder {
		return n.Folder.Title
	}
	return n.Document.Title
}

// ParentID returns the id of the containing folder, or nil for the root.
func (n *Node) ParentID() *string {
	if n.Kind == NodeKindFolder {
		return n.Folder.ParentID
	}
	return &n.Document.FolderID
}

func (n *Node) Path() string {
	if n.Kind == NodeKindFolder {
		return n.Folder.Path
	}
	return n.Document.Path
}
