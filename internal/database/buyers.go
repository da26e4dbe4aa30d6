package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bidscanner/internal/models"
)

// Defaults applied to buyers added without details
const (
	DefaultBuyerLocation = "Location TBD"
	DefaultBuyerRating   = 5.0
)

// CreateBuyer inserts a buyer, assigning an id and creation time when missing
func (d *Database) CreateBuyer(ctx context.Context, buyer *models.Buyer) error {
	if buyer.ID == "" {
		buyer.ID = uuid.NewString()
	}
	if buyer.Location == "" {
		buyer.Location = DefaultBuyerLocation
	}
	if buyer.Rating == 0 {
		buyer.Rating = DefaultBuyerRating
	}
	if buyer.Specialties == nil {
		buyer.Specialties = []string{}
	}
	if buyer.CreatedAt.IsZero() {
		buyer.CreatedAt = time.Now().UTC()
	}

	specialties, err := json.Marshal(buyer.Specialties)
	if err != nil {
		return fmt.Errorf("failed to marshal specialties: %w", err)
	}

	query := `
		INSERT INTO buyers (id, name, email, phone, company, location, rating, specialties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = d.db.ExecContext(ctx, query, buyer.ID, buyer.Name, buyer.Email, buyer.Phone,
		buyer.Company, buyer.Location, buyer.Rating, string(specialties), buyer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create buyer: %w", err)
	}
	return nil
}

// GetBuyer retrieves a buyer by id
func (d *Database) GetBuyer(ctx context.Context, id string) (*models.Buyer, error) {
	query := `
		SELECT id, name, email, phone, company, location, rating, specialties, created_at
		FROM buyers
		WHERE id = ?
	`
	buyer, err := scanBuyer(d.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBuyerNotFound
		}
		return nil, fmt.Errorf("failed to get buyer: %w", err)
	}
	return buyer, nil
}

// ListBuyers returns buyers by rating, best first. A non-empty search keeps
// buyers whose name, company, location or any specialty contains it.
func (d *Database) ListBuyers(ctx context.Context, search string) ([]models.Buyer, error) {
	query := `
		SELECT id, name, email, phone, company, location, rating, specialties, created_at
		FROM buyers
		ORDER BY rating DESC, name ASC
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyers: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(strings.TrimSpace(search))
	buyers := []models.Buyer{}
	for rows.Next() {
		buyer, err := scanBuyer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan buyer: %w", err)
		}
		if needle == "" || buyerMatches(buyer, needle) {
			buyers = append(buyers, *buyer)
		}
	}
	return buyers, rows.Err()
}

func buyerMatches(b *models.Buyer, needle string) bool {
	for _, field := range []string{b.Name, b.Company, b.Location} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	for _, s := range b.Specialties {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// UpdateBuyer overwrites the editable fields of an existing buyer
func (d *Database) UpdateBuyer(ctx context.Context, buyer *models.Buyer) error {
	if buyer.Specialties == nil {
		buyer.Specialties = []string{}
	}
	specialties, err := json.Marshal(buyer.Specialties)
	if err != nil {
		return fmt.Errorf("failed to marshal specialties: %w", err)
	}

	query := `
		UPDATE buyers
		SET name = ?, email = ?, phone = ?, company = ?, location = ?, rating = ?, specialties = ?
		WHERE id = ?
	`
	res, err := d.db.ExecContext(ctx, query, buyer.Name, buyer.Email, buyer.Phone, buyer.Company,
		buyer.Location, buyer.Rating, string(specialties), buyer.ID)
	if err != nil {
		return fmt.Errorf("failed to update buyer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBuyerNotFound
	}
	return nil
}

// DeleteBuyer removes a buyer and, through the foreign key, its offers
func (d *Database) DeleteBuyer(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM buyers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete buyer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBuyerNotFound
	}
	return nil
}

// CountBuyers counts stored buyers
func (d *Database) CountBuyers(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buyers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count buyers: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBuyer(row rowScanner) (*models.Buyer, error) {
	var b models.Buyer
	var email, phone, company, location sql.NullString
	var specialties string
	if err := row.Scan(&b.ID, &b.Name, &email, &phone, &company, &location,
		&b.Rating, &specialties, &b.CreatedAt); err != nil {
		return nil, err
	}

	// Handle nullable fields
	b.Email = email.String
	b.Phone = phone.String
	b.Company = company.String
	b.Location = location.String

	if err := json.Unmarshal([]byte(specialties), &b.Specialties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal specialties: %w", err)
	}
	if b.Specialties == nil {
		b.Specialties = []string{}
	}
	return &b, nil
}
