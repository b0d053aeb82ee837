package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Review is a customer rating of a product.
type Review struct {
	ID        string
	ProductID string
	Author    string
	Rating    int
	Content   string
	CreatedAt time.Time
}

const (
	MinReviewContent = 10
	MaxReviewContent = 1000
	MaxAuthorLength  = 40
)

// Validate checks the review fields a customer controls.
func (r *Review) Validate() error {
	errs := FieldErrors{}
	r.Author = strings.TrimSpace(r.Author)
	r.Content = strings.TrimSpace(r.Content)
	if r.Author == "" {
		errs.Add("author", "author is required")
	} else if utf8.RuneCountInString(r.Author) > MaxAuthorLength {
		errs.Add("author", "author is too long")
	}
	if r.Rating < 1 || r.Rating > 5 {
		errs.Add("rating", "rating must be between 1 and 5")
	}
	n := utf8.RuneCountInString(r.Content)
	if n < MinReviewContent {
		errs.Add("content", "content must be at least 10 characters")
	} else if n > MaxReviewContent {
		errs.Add("content", "content must be at most 1000 characters")
	}
	return errs.Err()
}

// ReviewSummary aggregates the ratings of a product.
type ReviewSummary struct {
	Count   int
	Average float64
}
