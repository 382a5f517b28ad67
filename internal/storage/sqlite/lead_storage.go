package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/models"
)

// AddLead persists an accepted lead. The full lead is stored as JSON;
// the extracted columns exist for dedup lookups and export queries.
func (s *Storage) AddLead(ctx context.Context, jobID, userID string, lead *models.Lead) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	now := time.Now().UTC().Unix()
	rating, review, completeness, social, signals := scoreComponents(lead)
	query := `
		INSERT INTO leads (id, job_id, user_id, place_id, name, phone, phone_digits,
			email, website, score, tier, rating_score, review_score,
			completeness_score, social_score, signals_score, lead_json,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.DB().ExecContext(ctx, query,
		lead.ID, jobID, userID, lead.PlaceID, lead.Name,
		lead.Phone, common.NormalizePhone(lead.Phone),
		lead.Email, lead.Website,
		lead.TotalScore(), lead.Tier(),
		rating, review, completeness, social, signals,
		string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// UpdateLead rewrites a stored lead after a later pipeline stage
// (scoring refresh, outreach attach) changed it.
func (s *Storage) UpdateLead(ctx context.Context, jobID string, lead *models.Lead) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	rating, review, completeness, social, signals := scoreComponents(lead)
	query := `
		UPDATE leads SET name = ?, phone = ?, phone_digits = ?, email = ?, website = ?,
			score = ?, tier = ?, rating_score = ?, review_score = ?,
			completeness_score = ?, social_score = ?, signals_score = ?,
			lead_json = ?, updated_at = ?
		WHERE job_id = ? AND place_id = ?`

	_, err = s.db.DB().ExecContext(ctx, query,
		lead.Name, lead.Phone, common.NormalizePhone(lead.Phone),
		lead.Email, lead.Website,
		lead.TotalScore(), lead.Tier(),
		rating, review, completeness, social, signals,
		string(data), time.Now().UTC().Unix(),
		jobID, lead.PlaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

// CheckLeadExists looks for a lead the user already saved in an
// earlier job, by place id first and phone number as a fallback for
// listings whose place id changed. The "unknown" sentinel and the
// empty string are not identities and never match by id. Returns
// (nil, nil) when no duplicate exists.
func (s *Storage) CheckLeadExists(ctx context.Context, userID, placeID, phone string) (*interfaces.ExistingLeadRef, error) {
	if placeID != "" && placeID != "unknown" {
		ref, err := s.lookupLeadRef(ctx,
			`SELECT job_id, name, created_at FROM leads WHERE user_id = ? AND place_id = ? LIMIT 1`,
			userID, placeID)
		if err != nil || ref != nil {
			return ref, err
		}
	}
	// The phone column stores digits only; normalize so formatted
	// callers still match.
	if digits := common.NormalizePhone(phone); digits != "" {
		return s.lookupLeadRef(ctx,
			`SELECT job_id, name, created_at FROM leads WHERE user_id = ? AND phone_digits = ? LIMIT 1`,
			userID, digits)
	}
	return nil, nil
}

func (s *Storage) lookupLeadRef(ctx context.Context, query string, args ...interface{}) (*interfaces.ExistingLeadRef, error) {
	var ref interfaces.ExistingLeadRef
	var createdAt int64

	err := s.db.DB().QueryRowContext(ctx, query, args...).Scan(&ref.JobID, &ref.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing lead: %w", err)
	}
	ref.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &ref, nil
}

// GetLeadsForJob returns a job's leads in acceptance order
func (s *Storage) GetLeadsForJob(ctx context.Context, jobID string) ([]*models.Lead, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT lead_json, score, tier, rating_score, review_score,
			completeness_score, social_score, signals_score
		FROM leads WHERE job_id = ? ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// GetLead loads one lead by id, returning the owning user id alongside
func (s *Storage) GetLead(ctx context.Context, leadID string) (*models.Lead, string, error) {
	var userID string
	var leadJSON string
	var total, rating, review, completeness, social, signals float64
	var tier string

	err := s.db.DB().QueryRowContext(ctx,
		`SELECT user_id, lead_json, score, tier, rating_score, review_score,
			completeness_score, social_score, signals_score
		FROM leads WHERE id = ?`, leadID).
		Scan(&userID, &leadJSON, &total, &tier, &rating, &review, &completeness, &social, &signals)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load lead %s: %w", leadID, err)
	}

	lead, err := decodeLead(leadJSON, total, tier, rating, review, completeness, social, signals)
	if err != nil {
		return nil, "", err
	}
	return lead, userID, nil
}

// GetJobPlaceIDs returns the place ids saved for a job, in order
func (s *Storage) GetJobPlaceIDs(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT place_id FROM leads WHERE job_id = ? ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query place ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteLeadsForJob removes all lead rows for a job
func (s *Storage) DeleteLeadsForJob(ctx context.Context, jobID string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM leads WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete leads: %w", err)
	}
	return nil
}

func scanLead(rows *sql.Rows) (*models.Lead, error) {
	var leadJSON, tier string
	var total, rating, review, completeness, social, signals float64

	if err := rows.Scan(&leadJSON, &total, &tier, &rating, &review, &completeness, &social, &signals); err != nil {
		return nil, fmt.Errorf("failed to scan lead row: %w", err)
	}
	return decodeLead(leadJSON, total, tier, rating, review, completeness, social, signals)
}

// decodeLead rebuilds a lead from its JSON blob, reattaching the score
// breakdown from the columns when the blob predates score storage.
func decodeLead(leadJSON string, total float64, tier string, rating, review, completeness, social, signals float64) (*models.Lead, error) {
	var lead models.Lead
	if err := json.Unmarshal([]byte(leadJSON), &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead: %w", err)
	}

	if lead.Score == nil && total > 0 {
		lead.Score = &models.LeadScore{
			Rating:       rating,
			Reviews:      review,
			Completeness: completeness,
			Social:       social,
			Signals:      signals,
			Total:        total,
			Tier:         tier,
		}
	}
	return &lead, nil
}

// scoreComponents flattens the score breakdown for column storage
func scoreComponents(lead *models.Lead) (rating, review, completeness, social, signals float64) {
	if lead.Score == nil {
		return 0, 0, 0, 0, 0
	}
	return lead.Score.Rating, lead.Score.Reviews, lead.Score.Completeness,
		lead.Score.Social, lead.Score.Signals
}
