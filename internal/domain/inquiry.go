package domain

import (
	"net/mail"
	"strings"
	"time"
)

// InquiryStatus tracks seller follow-up on a brand inquiry.
type InquiryStatus string

const (
	InquiryNew      InquiryStatus = "new"
	InquiryReviewed InquiryStatus = "reviewed"
)

// BrandInquiry is a partnership request from a brand.
type BrandInquiry struct {
	ID          string
	Company     string
	ContactName string
	Email       string
	Phone       string
	Message     string
	Country     string
	Status      InquiryStatus
	CreatedAt   time.Time
}

// Validate checks required fields and formats.
func (b *BrandInquiry) Validate() error {
	errs := FieldErrors{}
	b.Company = strings.TrimSpace(b.Company)
	b.ContactName = strings.TrimSpace(b.ContactName)
	b.Email = strings.TrimSpace(b.Email)
	b.Phone = strings.TrimSpace(b.Phone)
	b.Message = strings.TrimSpace(b.Message)
	if b.Company == "" {
		errs.Add("company", "company is required")
	}
	if b.ContactName == "" {
		errs.Add("contact_name", "contact name is required")
	}
	if b.Email == "" {
		errs.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(b.Email); err != nil {
		errs.Add("email", "email is invalid")
	}
	if b.Message == "" {
		errs.Add("message", "message is required")
	}
	return errs.Err()
}
