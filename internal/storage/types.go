package storage

import (
	"errors"
	"time"

	"github.com/atticlabs/attic/pkg/types"
)

var (
	// ErrNotFound indicates that the referenced row does not exist or
	// belongs to a different owner. Cross-owner references are reported
	// identically to absent rows so nothing leaks across owners.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation indicates malformed input: empty text, an unrecognized
	// enum value, an out-of-range confidence, or a reminder with no trigger.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidState indicates an illegal reminder transition, e.g.
	// completing a cancelled reminder.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrIntegrity indicates a uniqueness or foreign-key violation that
	// survived pre-validation, typically a race between concurrent writers.
	// Idempotent operations retry once before surfacing it.
	ErrIntegrity = errors.New("integrity violation")
)

// PaginatedResult is a page of results plus enough bookkeeping for the
// caller to restart the sequence where it left off.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 10, max: 100).
	Limit int

	// SortBy specifies the field to sort by ("created_at" or "updated_at").
	SortBy string

	// SortOrder specifies the sort direction ("asc" or "desc", default: "desc").
	SortOrder string

	// SourceKind filters captures by how they arrived. Empty means no filter.
	SourceKind types.SourceKind

	// Status filters captures by pipeline status. Empty means no filter.
	Status types.CaptureStatus

	// CreatedBy filters by the client that produced the capture.
	CreatedBy string

	// CreatedAfter filters to rows created strictly after this time.
	// Zero value means no lower bound.
	CreatedAfter time.Time

	// CreatedBefore filters to rows created strictly before this time.
	// Zero value means no upper bound.
	CreatedBefore time.Time

	// TextContains filters captures to those whose original or processed
	// text contains this substring. Empty means no filter.
	TextContains string
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	// Whitelist validation for SortBy to prevent SQL injection.
	allowedSortFields := map[string]bool{
		"created_at": true,
		"updated_at": true,
	}

	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created_at"
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}

	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 10
	}

	if o.Limit > 100 {
		o.Limit = 100
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// SearchOptions provides options for full-text capture search.
type SearchOptions struct {
	// Query is the free-form search query string.
	Query string

	// Limit is the maximum number of results to return (default: 10, max: 100).
	Limit int

	// Offset is the number of results to skip.
	Offset int
}

// Normalize applies defaults and validates the SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 10
	}

	if o.Limit > 100 {
		o.Limit = 100
	}

	if o.Offset < 0 {
		o.Offset = 0
	}
}
