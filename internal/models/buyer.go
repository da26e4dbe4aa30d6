package models

import "time"

// Buyer is a contact that can receive bid requests
type Buyer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" binding:"required"`
	Email       string    `json:"email" binding:"omitempty,email"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	Rating      float64   `json:"rating"`
	Specialties []string  `json:"specialties"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Bid request lifecycle
const (
	BidRequestPending   = "pending"
	BidRequestSubmitted = "submitted"
	BidRequestResponded = "responded"
	BidRequestExpired   = "expired"
)

// Buyer offer lifecycle
const (
	OfferPending  = "pending"
	OfferAccepted = "accepted"
	OfferDeclined = "declined"
)

// BidRequest asks a set of buyers to bid on one scanned vehicle
type BidRequest struct {
	ID            string        `json:"id"`
	Vehicle       VehicleRecord `json:"vehicle"`
	SourceURL     string        `json:"sourceUrl"`
	Message       string        `json:"message,omitempty"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`
	ResponseCount int           `json:"responseCount"`
	Offers        []BuyerOffer  `json:"offers"`
}

// BuyerOffer is one buyer's answer to a bid request
type BuyerOffer struct {
	ID           string     `json:"id"`
	BidRequestID string     `json:"bidRequestId"`
	BuyerID      string     `json:"buyerId"`
	BuyerName    string     `json:"buyerName"`
	OfferAmount  float64    `json:"offerAmount"`
	Status       string     `json:"status"`
	Message      string     `json:"message,omitempty"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
}

// BidRequestNotice is published to each buyer when a bid request goes out
type BidRequestNotice struct {
	BidRequestID string        `json:"bidRequestId"`
	OfferID      string        `json:"offerId"`
	BuyerID      string        `json:"buyerId"`
	Vehicle      VehicleRecord `json:"vehicle"`
	SourceURL    string        `json:"sourceUrl"`
	Message      string        `json:"message,omitempty"`
}

// OfferReply is what a buyer sends back on the offers subject
type OfferReply struct {
	OfferID     string  `json:"offerId"`
	OfferAmount float64 `json:"offerAmount"`
	Accept      bool    `json:"accept"`
	Message     string  `json:"message,omitempty"`
}
