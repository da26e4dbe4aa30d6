// Package bidrequest sends scanned vehicles to buyers and collects their
// offers. Requests are persisted first and then announced to each buyer on
// its own NATS subject; buyers answer on a shared offers subject.
package bidrequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"bidscanner/internal/models"
)

const (
	// SubjectPrefix + "." + buyer id carries BidRequestNotice messages
	SubjectPrefix = "bidscanner.bidrequests"
	// OffersSubject carries OfferReply messages from buyers
	OffersSubject = "bidscanner.offers"
)

var (
	ErrNotScanned = errors.New("page has not been scanned yet")
	ErrNoBuyers   = errors.New("at least one buyer is required")
)

// BuyerSubject is the subject a buyer listens on
func BuyerSubject(buyerID string) string {
	return SubjectPrefix + "." + buyerID
}

// Store is the persistence the service needs
type Store interface {
	GetBuyer(ctx context.Context, id string) (*models.Buyer, error)
	CreateBidRequest(ctx context.Context, req *models.BidRequest) error
	GetBidRequest(ctx context.Context, id string) (*models.BidRequest, error)
	ListBidRequests(ctx context.Context, limit int) ([]models.BidRequest, error)
	RecordOffer(ctx context.Context, reply models.OfferReply, at time.Time) (*models.BuyerOffer, error)
	ExpireBidRequests(ctx context.Context, cutoff time.Time) (int64, error)
}

// BroadcastInput is one request to bid on a scanned vehicle
type BroadcastInput struct {
	Result   models.ExtractionResult
	BuyerIDs []string
	Message  string
}

// Service creates bid requests and records offers
type Service struct {
	store   Store
	nc      *nats.Conn
	now     func() time.Time
	logger  logrus.FieldLogger
	onOffer func(models.BuyerOffer)
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithOfferHook is called after each offer is stored
func WithOfferHook(fn func(models.BuyerOffer)) Option {
	return func(s *Service) { s.onOffer = fn }
}

// NewService creates a service. With a nil connection requests are stored as
// pending and nothing is published.
func NewService(store Store, nc *nats.Conn, opts ...Option) *Service {
	s := &Service{
		store:  store,
		nc:     nc,
		now:    time.Now,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast stores a bid request with one pending offer per buyer and notifies
// each buyer. A failed notice is reported but the request stays stored.
func (s *Service) Broadcast(ctx context.Context, in BroadcastInput) (*models.BidRequest, error) {
	if !in.Result.Scanned() {
		return nil, ErrNotScanned
	}
	buyerIDs := dedupe(in.BuyerIDs)
	if len(buyerIDs) == 0 {
		return nil, ErrNoBuyers
	}

	buyers := make([]*models.Buyer, 0, len(buyerIDs))
	for _, id := range buyerIDs {
		b, err := s.store.GetBuyer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("buyer %s: %w", id, err)
		}
		buyers = append(buyers, b)
	}

	now := s.now().UTC()
	req := &models.BidRequest{
		ID:        uuid.NewString(),
		Vehicle:   snapshot(in.Result),
		SourceURL: in.Result.URL,
		Message:   in.Message,
		Status:    models.BidRequestPending,
		CreatedAt: now,
	}
	if s.nc != nil {
		req.Status = models.BidRequestSubmitted
		req.SubmittedAt = &now
	}
	for _, b := range buyers {
		req.Offers = append(req.Offers, models.BuyerOffer{
			ID:           uuid.NewString(),
			BidRequestID: req.ID,
			BuyerID:      b.ID,
			BuyerName:    b.Name,
			Status:       models.OfferPending,
		})
	}

	if err := s.store.CreateBidRequest(ctx, req); err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{"bidRequest": req.ID, "buyers": len(buyers)})
	if s.nc == nil {
		logger.Warn("No message broker configured, bid request stored as pending")
		return req, nil
	}

	var failed int
	for _, o := range req.Offers {
		notice := models.BidRequestNotice{
			BidRequestID: req.ID,
			OfferID:      o.ID,
			BuyerID:      o.BuyerID,
			Vehicle:      req.Vehicle,
			SourceURL:    req.SourceURL,
			Message:      req.Message,
		}
		if err := publish(ctx, s.nc, BuyerSubject(o.BuyerID), notice); err != nil {
			logger.WithField("buyer", o.BuyerID).WithError(err).Warn("Failed to publish bid request")
			failed++
		}
	}
	if failed > 0 {
		return req, fmt.Errorf("failed to notify %d of %d buyers", failed, len(req.Offers))
	}
	logger.Info("Bid request broadcast")
	return req, nil
}

// StartOfferConsumer records replies arriving on OffersSubject
func (s *Service) StartOfferConsumer(nc *nats.Conn) (*nats.Subscription, error) {
	return subscribe(nc, OffersSubject, func(ctx context.Context, reply models.OfferReply) {
		offer, err := s.store.RecordOffer(ctx, reply, s.now().UTC())
		if err != nil {
			s.logger.WithField("offer", reply.OfferID).WithError(err).Warn("Failed to record offer")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"offer":      offer.ID,
			"bidRequest": offer.BidRequestID,
			"status":     offer.Status,
		}).Info("Offer received")
		if s.onOffer != nil {
			s.onOffer(*offer)
		}
	}, func(err error) {
		s.logger.WithError(err).Warn("Dropping malformed offer")
	})
}

// Get returns one bid request with its offers
func (s *Service) Get(ctx context.Context, id string) (*models.BidRequest, error) {
	return s.store.GetBidRequest(ctx, id)
}

// List returns recent bid requests, newest first
func (s *Service) List(ctx context.Context, limit int) ([]models.BidRequest, error) {
	return s.store.ListBidRequests(ctx, limit)
}

// ExpireOlderThan marks open requests older than retention as expired
func (s *Service) ExpireOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.ExpireBidRequests(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("Expired stale bid requests")
	}
	return n, nil
}

// RunRetention expires requests every interval until ctx is done. retention is
// read on each tick so option changes apply without a restart.
func (s *Service) RunRetention(ctx context.Context, interval time.Duration, retention func() time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.ExpireOlderThan(ctx, retention()); err != nil {
			s.logger.WithError(err).Warn("Retention pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// snapshot copies the vehicle fields, falling back to the first bid candidate
// when the site adapter found no current bid
func snapshot(r models.ExtractionResult) models.VehicleRecord {
	var v models.VehicleRecord
	if r.Vehicle != nil {
		v = *r.Vehicle
	}
	if v.Title == "" {
		v.Title = r.PageTitle
	}
	if v.CurrentBid == "" && len(r.Bids) > 0 {
		v.CurrentBid = r.Bids[0].Price
	}
	return v
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
