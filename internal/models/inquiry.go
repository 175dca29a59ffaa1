package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Inquiry types for general quote inquiries.
const (
	InquiryTypeProduct  = "product"
	InquiryTypePrice    = "price"
	InquiryTypeDelivery = "delivery"
	InquiryTypeEtc      = "etc"
)

var InquiryTypes = []string{InquiryTypeProduct, InquiryTypePrice, InquiryTypeDelivery, InquiryTypeEtc}

// Inquiry is a general quote inquiry.
type Inquiry struct {
	Record
	Title         string `json:"title"`
	Description   string `json:"description"`
	InquiryType   string `json:"inquiry_type"`
	RequesterName string `json:"requester_name"`
}

func (i *Inquiry) ApplyDefaults() {
	if i.InquiryType == "" {
		i.InquiryType = InquiryTypeProduct
	}
}

func (i Inquiry) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Title, required, maxLength(200)),
		validation.Field(&i.Description, required),
		validation.Field(&i.InquiryType, required, oneOf(InquiryTypes...)),
		validation.Field(&i.RequesterName, required, maxLength(100)),
	)
}

func (i *Inquiry) Clone() *Inquiry {
	clone := *i
	return &clone
}
