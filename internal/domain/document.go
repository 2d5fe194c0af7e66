package domain

import "time"

// Document is a stored knowledge-base entry. Title and Content together form
// the text that the retrieval engine indexes.
type Document struct {
	ID           string
	Title        string
	Content      string
	Sensitive    bool
	Author       string
	Department   string
	Tags         []string
	Version      int
	ViewCount    int
	HelpfulCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IndexText returns the text the retrieval engine indexes for this document.
func (d *Document) IndexText() string {
	return d.Title + "\n" + d.Content
}
