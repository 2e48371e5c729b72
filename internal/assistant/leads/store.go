package leads

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/esilv-labs/assistant-go/internal/assistant/models"
	"github.com/esilv-labs/assistant-go/pkg/db"
	"github.com/esilv-labs/assistant-go/pkg/util"

	"github.com/rs/zerolog"
)

var ErrLeadNotFound = errors.New("lead not found")

const schema = `
	CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		education TEXT,
		program_of_interest TEXT,
		message TEXT,
		created_at TEXT NOT NULL
	)
`

const timeLayout = "2006-01-02T15:04:05Z"

// Store persists leads collected by the contact form.
type Store struct {
	db     *db.DB
	logger zerolog.Logger
}

// NewStore creates a lead store and ensures the schema exists.
func NewStore(database *db.DB) (*Store, error) {
	store := &Store{
		db:     database,
		logger: util.NewLogger(zerolog.ErrorLevel),
	}
	if _, err := database.Exec(schema); err != nil {
		store.logger.Error().Err(err).Msg("Failed to ensure leads schema")
		return nil, err
	}
	return store, nil
}

// Add inserts a lead and returns it with its assigned id.
func (s *Store) Add(ctx context.Context, lead models.Lead) (models.Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO leads (name, email, education, program_of_interest, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, lead.Name, lead.Email,
		lead.Education, lead.Program, lead.Message, lead.CreatedAt.Format(timeLayout))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to insert lead")
		return models.Lead{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read inserted lead id")
		return models.Lead{}, err
	}
	lead.ID = id
	return lead, nil
}

const selectColumns = "id, name, email, education, program_of_interest, message, created_at"

func scanLead(row interface{ Scan(...any) error }) (models.Lead, error) {
	var lead models.Lead
	var createdAt string
	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Education, &lead.Program, &lead.Message, &createdAt)
	if err != nil {
		return models.Lead{}, err
	}
	lead.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return lead, nil
}

// Get returns the lead with the given id.
func (s *Store) Get(ctx context.Context, id int64) (models.Lead, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM leads WHERE id = ?", id)

	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, ErrLeadNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("lead_id", id).Msg("Failed to get lead")
		return models.Lead{}, err
	}
	return lead, nil
}

// GetByEmail returns the first lead registered with the email,
// case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM leads WHERE lower(email) = lower(?) ORDER BY id LIMIT 1", email)

	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lead{}, ErrLeadNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get lead by email")
		return models.Lead{}, err
	}
	return lead, nil
}

// List returns all leads, newest first.
func (s *Store) List(ctx context.Context) ([]models.Lead, error) {
	return s.queryLeads(ctx, "SELECT "+selectColumns+" FROM leads ORDER BY id DESC")
}

// Search returns leads whose name or email contains the query,
// case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]models.Lead, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	return s.queryLeads(ctx,
		"SELECT "+selectColumns+" FROM leads WHERE lower(name) LIKE ? OR lower(email) LIKE ? ORDER BY id DESC",
		pattern, pattern)
}

func (s *Store) queryLeads(ctx context.Context, query string, args ...any) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to query leads")
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Count returns the total number of leads.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads").Scan(&count); err != nil {
		s.logger.Error().Err(err).Msg("Failed to count leads")
		return 0, err
	}
	return count, nil
}

// Update overwrites the provided non-nil fields of a lead. Name and email
// are updated only when non-empty.
func (s *Store) Update(ctx context.Context, id int64, update models.Lead) (models.Lead, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.Lead{}, err
	}

	if name := strings.TrimSpace(update.Name); name != "" {
		current.Name = name
	}
	if email := strings.TrimSpace(update.Email); email != "" {
		current.Email = email
	}
	if update.Education != nil {
		current.Education = update.Education
	}
	if update.Program != nil {
		current.Program = update.Program
	}
	if update.Message != nil {
		current.Message = update.Message
	}

	query := `
		UPDATE leads SET name = ?, email = ?, education = ?, program_of_interest = ?, message = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, current.Name, current.Email,
		current.Education, current.Program, current.Message, id); err != nil {
		s.logger.Error().Err(err).Int64("lead_id", id).Msg("Failed to update lead")
		return models.Lead{}, err
	}
	return current, nil
}

// Delete removes a lead.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		s.logger.Error().Err(err).Int64("lead_id", id).Msg("Failed to delete lead")
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// ExportCSV renders all leads as CSV, oldest first.
func (s *Store) ExportCSV(ctx context.Context) (string, error) {
	leads, err := s.queryLeads(ctx, "SELECT "+selectColumns+" FROM leads ORDER BY id")
	if err != nil {
		return "", err
	}
	if len(leads) == 0 {
		return "", nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"ID", "Name", "Email", "Education", "Program of Interest", "Message", "Collected Date"}); err != nil {
		return "", err
	}

	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	for _, lead := range leads {
		record := []string{
			strconv.FormatInt(lead.ID, 10),
			lead.Name,
			lead.Email,
			deref(lead.Education),
			deref(lead.Program),
			deref(lead.Message),
			lead.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return b.String(), w.Error()
}
