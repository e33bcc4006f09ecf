// Package catalog holds the learning-object values shared by the ingestion
// pipeline, the resource cache and the storage backends.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aryankumar/lomsync/internal/util"
)

// Item is one record to import. It is built by the caller before submission and
// never mutated afterwards. Description and Language are optional; an empty
// string means absent.
type Item struct {
	Title       string `yaml:"title" json:"title"`
	Locator     string `yaml:"locator" json:"locator"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Language    string `yaml:"language,omitempty" json:"language,omitempty"`
}

// Label identifies the item in logs, progress callbacks and failure reports
func (i Item) Label() string {
	return i.Title
}

// Validate checks the minimum needed to attempt creation. Duplicate detection
// and business rules are the repository's concern.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: title is required", util.ErrInvalidItem)
	}
	return nil
}

// Resource is a snapshot of a stored learning-object record.
// Resources are passed by value across the cache boundary so callers can never
// mutate cache-owned state.
type Resource struct {
	ID          int64     `yaml:"id" json:"id"`
	Title       string    `yaml:"title" json:"title"`
	Locator     string    `yaml:"locator" json:"locator"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Language    string    `yaml:"language,omitempty" json:"language,omitempty"`
	Version     int64     `yaml:"version" json:"version"`
	CreatedAt   time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `yaml:"updatedAt" json:"updatedAt"`
}

// Key renders the resource ID for logs and error attribution
func (r Resource) Key() string {
	return FormatKey(r.ID)
}

// FormatKey renders a resource ID as a string key
func FormatKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NewResource builds the initial snapshot for an item before it is persisted
func NewResource(item Item, now time.Time) Resource {
	return Resource{
		Title:       strings.TrimSpace(item.Title),
		Locator:     strings.TrimSpace(item.Locator),
		Description: item.Description,
		Language:    item.Language,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
