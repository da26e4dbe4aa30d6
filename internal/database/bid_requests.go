package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bidscanner/internal/models"
)

// CreateBidRequest stores a request together with its offers in one transaction
func (d *Database) CreateBidRequest(ctx context.Context, req *models.BidRequest) error {
	vehicleJSON, err := json.Marshal(req.Vehicle)
	if err != nil {
		return fmt.Errorf("failed to marshal vehicle: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bid_requests (id, vehicle_json, source_url, message, status, response_count, created_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ID, string(vehicleJSON), req.SourceURL, req.Message, req.Status,
		req.ResponseCount, req.CreatedAt.UTC(), req.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create bid request: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO buyer_offers (id, bid_request_id, buyer_id, buyer_name, offer_amount, status, message, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range req.Offers {
		if _, err := stmt.ExecContext(ctx, o.ID, req.ID, o.BuyerID, o.BuyerName,
			o.OfferAmount, o.Status, o.Message, o.SubmittedAt); err != nil {
			return fmt.Errorf("failed to insert offer for buyer %s: %w", o.BuyerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBidRequest retrieves a request and its offers
func (d *Database) GetBidRequest(ctx context.Context, id string) (*models.BidRequest, error) {
	query := `
		SELECT id, vehicle_json, source_url, message, status, response_count, created_at, submitted_at
		FROM bid_requests
		WHERE id = ?
	`
	req, err := scanBidRequest(d.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBidRequestNotFound
		}
		return nil, fmt.Errorf("failed to get bid request: %w", err)
	}

	offers, err := d.getOffers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}
	req.Offers = offers
	return req, nil
}

// ListBidRequests returns the newest requests first, with their offers
func (d *Database) ListBidRequests(ctx context.Context, limit int) ([]models.BidRequest, error) {
	query := `
		SELECT id, vehicle_json, source_url, message, status, response_count, created_at, submitted_at
		FROM bid_requests
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bid requests: %w", err)
	}

	requests := []models.BidRequest{}
	for rows.Next() {
		req, err := scanBidRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bid request: %w", err)
		}
		requests = append(requests, *req)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Offers are loaded after the cursor closes; the pool has a single connection
	for i := range requests {
		offers, err := d.getOffers(ctx, requests[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load offers: %w", err)
		}
		requests[i].Offers = offers
	}
	return requests, nil
}

// RecordOffer stores a buyer's reply and marks the request responded
func (d *Database) RecordOffer(ctx context.Context, reply models.OfferReply, at time.Time) (*models.BuyerOffer, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var requestID, previous string
	err = tx.QueryRowContext(ctx, `SELECT bid_request_id, status FROM buyer_offers WHERE id = ?`, reply.OfferID).
		Scan(&requestID, &previous)
	if err == sql.ErrNoRows {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offer: %w", err)
	}

	status := models.OfferDeclined
	if reply.Accept {
		status = models.OfferAccepted
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE buyer_offers SET offer_amount = ?, status = ?, message = ?, submitted_at = ? WHERE id = ?
	`, reply.OfferAmount, status, reply.Message, at, reply.OfferID); err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}

	// A buyer answering twice counts once
	increment := 0
	if previous == models.OfferPending {
		increment = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE bid_requests SET status = ?, response_count = response_count + ? WHERE id = ? AND status != ?
	`, models.BidRequestResponded, increment, requestID, models.BidRequestExpired); err != nil {
		return nil, fmt.Errorf("failed to update bid request: %w", err)
	}

	offer, err := scanOffer(tx.QueryRowContext(ctx, offerColumns+` WHERE id = ?`, reply.OfferID))
	if err != nil {
		return nil, fmt.Errorf("failed to reload offer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return offer, nil
}

// ExpireBidRequests marks submitted or pending requests created before cutoff
// as expired and returns how many changed. Creation times are stored in UTC.
func (d *Database) ExpireBidRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE bid_requests SET status = ?
		WHERE status IN (?, ?) AND created_at < ?
	`, models.BidRequestExpired, models.BidRequestPending, models.BidRequestSubmitted, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire bid requests: %w", err)
	}
	return res.RowsAffected()
}

const offerColumns = `
	SELECT id, bid_request_id, buyer_id, buyer_name, offer_amount, status, message, submitted_at
	FROM buyer_offers`

func (d *Database) getOffers(ctx context.Context, requestID string) ([]models.BuyerOffer, error) {
	rows, err := d.db.QueryContext(ctx, offerColumns+` WHERE bid_request_id = ? ORDER BY buyer_name`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := []models.BuyerOffer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func scanOffer(row rowScanner) (*models.BuyerOffer, error) {
	var o models.BuyerOffer
	var message sql.NullString
	var submittedAt sql.NullTime
	if err := row.Scan(&o.ID, &o.BidRequestID, &o.BuyerID, &o.BuyerName,
		&o.OfferAmount, &o.Status, &message, &submittedAt); err != nil {
		return nil, err
	}
	o.Message = message.String
	if submittedAt.Valid {
		o.SubmittedAt = &submittedAt.Time
	}
	return &o, nil
}

func scanBidRequest(row rowScanner) (*models.BidRequest, error) {
	var r models.BidRequest
	var vehicleJSON string
	var message sql.NullString
	var submittedAt sql.NullTime
	if err := row.Scan(&r.ID, &vehicleJSON, &r.SourceURL, &message, &r.Status,
		&r.ResponseCount, &r.CreatedAt, &submittedAt); err != nil {
		return nil, err
	}
	r.Message = message.String
	if submittedAt.Valid {
		r.SubmittedAt = &submittedAt.Time
	}
	if err := json.Unmarshal([]byte(vehicleJSON), &r.Vehicle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vehicle: %w", err)
	}
	return &r, nil
}
