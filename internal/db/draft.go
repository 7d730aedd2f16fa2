package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/cv-ingest/internal/draft"
	"github.com/jonathan/cv-ingest/internal/types"
)

// draftTables lists every table that holds part of a draft
var draftTables = []string{
	"cv_personal_info",
	"cv_experiences",
	"cv_education",
	"cv_skills",
	"cv_languages",
}

// ReplaceDraft deletes every section of the user's draft and writes state in a
// single transaction. A failure leaves the previous draft untouched.
func (db *DB) ReplaceDraft(ctx context.Context, userID uuid.UUID, state *types.CVState) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range draftTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	p := state.PersonalInfo
	_, err = tx.Exec(ctx,
		`INSERT INTO cv_personal_info (user_id, first_name, last_name, email, phone, location, profession, website, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, p.FirstName, p.LastName, p.Email, p.Phone, p.Location, p.Profession, p.Website, p.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert personal info: %w", err)
	}

	for i, e := range state.Experiences {
		_, err = tx.Exec(ctx,
			`INSERT INTO cv_experiences (user_id, position, job_title, company, location, start_date, end_date, is_current, description)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			userID, i, e.JobTitle, e.Company, e.Location, e.StartDate, e.EndDate, e.Current, e.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert experience %d: %w", i, err)
		}
	}

	for i, e := range state.Education {
		_, err = tx.Exec(ctx,
			`INSERT INTO cv_education (user_id, position, school, degree, field, location, start_date, end_date, is_current, description)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			userID, i, e.School, e.Degree, e.Field, e.Location, e.StartDate, e.EndDate, e.Current, e.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert education %d: %w", i, err)
		}
	}

	if len(state.Skills) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"cv_skills"},
			[]string{"user_id", "position", "name"},
			pgx.CopyFromRows(skillRows(userID, state.Skills)),
		)
		if err != nil {
			return fmt.Errorf("failed to copy skills: %w", err)
		}
	}

	for i, l := range state.Languages {
		_, err = tx.Exec(ctx,
			`INSERT INTO cv_languages (user_id, position, language, level) VALUES ($1, $2, $3, $4)`,
			userID, i, l.Language, l.Level,
		)
		if err != nil {
			return fmt.Errorf("failed to insert language %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func skillRows(userID uuid.UUID, skills []string) [][]any {
	rows := make([][]any, len(skills))
	for i, name := range skills {
		rows[i] = []any{userID, i, name}
	}
	return rows
}

// GetDraft loads the user's draft, returning draft.ErrNotFound if none was written
func (db *DB) GetDraft(ctx context.Context, userID uuid.UUID) (*types.CVState, error) {
	// one snapshot for all sections
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	state := types.NewCVState()

	p := &state.PersonalInfo
	err = tx.QueryRow(ctx,
		`SELECT first_name, last_name, email, phone, location, profession, website, summary
		 FROM cv_personal_info WHERE user_id = $1`,
		userID,
	).Scan(&p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Location, &p.Profession, &p.Website, &p.Summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, draft.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get personal info: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT job_title, company, location, start_date, end_date, is_current, description
		 FROM cv_experiences WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiences: %w", err)
	}
	state.Experiences, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Experience, error) {
		var e types.Experience
		err := row.Scan(&e.JobTitle, &e.Company, &e.Location, &e.StartDate, &e.EndDate, &e.Current, &e.Description)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan experiences: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT school, degree, field, location, start_date, end_date, is_current, description
		 FROM cv_education WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query education: %w", err)
	}
	state.Education, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Education, error) {
		var e types.Education
		err := row.Scan(&e.School, &e.Degree, &e.Field, &e.Location, &e.StartDate, &e.EndDate, &e.Current, &e.Description)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan education: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT name FROM cv_skills WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	state.Skills, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan skills: %w", err)
	}

	rows, err = tx.Query(ctx,
		`SELECT language, level FROM cv_languages WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query languages: %w", err)
	}
	state.Languages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Language, error) {
		var l types.Language
		err := row.Scan(&l.Language, &l.Level)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan languages: %w", err)
	}

	state.EnsureComplete()
	return state, nil
}

var _ draft.Store = (*DB)(nil)
