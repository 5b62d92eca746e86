package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/imuhira/backend/internal/database"
	"github.com/imuhira/backend/internal/models"
)

var (
	ErrDebateNotFound = errors.New("debate not found")
	ErrSlugTaken      = errors.New("slug already in use")
)

const uniqueViolation = "23505"

const debateColumns = `
	id, title, slug, topic, summary, verdict, youtube_video_id, youtube_video_title,
	main_image_url, author_name, status, created_at, updated_at, published_at
`

const argumentColumns = `id, debate_id, faction, speaker_name, argument, order_index, created_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type DebateRepository struct {
	db  *database.DB
	now func() time.Time
}

func NewDebateRepository(db *database.DB) *DebateRepository {
	return &DebateRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a debate and its arguments in one transaction
func (r *DebateRepository) Create(ctx context.Context, req *models.DebateRequest) (*models.DebateWithArguments, error) {
	req.Normalize()
	now := r.now()

	var out *models.DebateWithArguments
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO debates (title, slug, topic, summary, verdict, youtube_video_id, youtube_video_title,
				main_image_url, author_name, status, created_at, updated_at, published_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $12)
			RETURNING ` + debateColumns

		debate, err := scanDebate(tx.QueryRowContext(ctx, query,
			req.Title,
			req.Slug,
			req.Topic,
			req.Summary,
			req.Verdict,
			req.YoutubeVideoID,
			req.YoutubeVideoTitle,
			req.MainImageURL,
			req.AuthorName,
			req.Status,
			now,
			models.ResolvePublishedAt(req.Status, nil, now),
		))
		if err != nil {
			return wrapWriteErr("failed to create debate", err)
		}

		if err := insertArguments(ctx, tx, debate.ID, req, now); err != nil {
			return err
		}

		args, err := readArguments(ctx, tx, debate.ID)
		if err != nil {
			return err
		}

		out = &models.DebateWithArguments{Debate: *debate, Arguments: models.PartitionArguments(args)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites every scalar field and replaces the argument lists.
// It also returns the slug the debate had before the write.
func (r *DebateRepository) Update(ctx context.Context, id int64, req *models.DebateRequest) (*models.DebateWithArguments, string, error) {
	req.Normalize()
	now := r.now()

	var (
		out          *models.DebateWithArguments
		previousSlug string
	)
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var existingPublishedAt *time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT slug, published_at FROM debates WHERE id = $1 FOR UPDATE`, id,
		).Scan(&previousSlug, &existingPublishedAt)
		if err == sql.ErrNoRows {
			return ErrDebateNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load debate: %w", err)
		}

		query := `
			UPDATE debates
			SET title = $1, slug = $2, topic = $3, summary = $4, verdict = $5, youtube_video_id = $6,
				youtube_video_title = $7, main_image_url = $8, author_name = $9, status = $10,
				updated_at = $11, published_at = $12
			WHERE id = $13
			RETURNING ` + debateColumns

		debate, err := scanDebate(tx.QueryRowContext(ctx, query,
			req.Title,
			req.Slug,
			req.Topic,
			req.Summary,
			req.Verdict,
			req.YoutubeVideoID,
			req.YoutubeVideoTitle,
			req.MainImageURL,
			req.AuthorName,
			req.Status,
			now,
			models.ResolvePublishedAt(req.Status, existingPublishedAt, now),
			id,
		))
		if err != nil {
			return wrapWriteErr("failed to update debate", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM debate_arguments WHERE debate_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear arguments: %w", err)
		}

		if err := insertArguments(ctx, tx, id, req, now); err != nil {
			return err
		}

		args, err := readArguments(ctx, tx, id)
		if err != nil {
			return err
		}

		out = &models.DebateWithArguments{Debate: *debate, Arguments: models.PartitionArguments(args)}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, previousSlug, nil
}

// GetByID returns a debate regardless of status
func (r *DebateRepository) GetByID(ctx context.Context, id int64) (*models.DebateWithArguments, error) {
	debate, err := scanDebate(r.db.QueryRowContext(ctx,
		`SELECT `+debateColumns+` FROM debates WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrDebateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}

	args, err := readArguments(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &models.DebateWithArguments{Debate: *debate, Arguments: models.PartitionArguments(args)}, nil
}

// GetPublishedBySlug returns a debate only when it is published
func (r *DebateRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.DebateWithArguments, error) {
	debate, err := scanDebate(r.db.QueryRowContext(ctx,
		`SELECT `+debateColumns+` FROM debates WHERE slug = $1 AND status = 'published'`, slug,
	))
	if err == sql.ErrNoRows {
		return nil, ErrDebateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}

	args, err := readArguments(ctx, r.db, debate.ID)
	if err != nil {
		return nil, err
	}
	return &models.DebateWithArguments{Debate: *debate, Arguments: models.PartitionArguments(args)}, nil
}

// List returns every debate, newest first
func (r *DebateRepository) List(ctx context.Context) ([]models.DebateWithArguments, error) {
	return r.listWhere(ctx, `SELECT `+debateColumns+` FROM debates ORDER BY created_at DESC, id DESC`)
}

// ListPublished returns published debates, most recently published first
func (r *DebateRepository) ListPublished(ctx context.Context, limit int) ([]models.DebateWithArguments, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.listWhere(ctx,
		`SELECT `+debateColumns+` FROM debates WHERE status = 'published'
		ORDER BY published_at DESC, id DESC LIMIT $1`, limit)
}

// Delete removes a debate; its arguments go with it through the cascade.
// The deleted row is returned so callers can invalidate by slug.
func (r *DebateRepository) Delete(ctx context.Context, id int64) (*models.Debate, error) {
	debate, err := scanDebate(r.db.QueryRowContext(ctx,
		`DELETE FROM debates WHERE id = $1 RETURNING `+debateColumns, id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrDebateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete debate: %w", err)
	}
	return debate, nil
}

func (r *DebateRepository) listWhere(ctx context.Context, query string, args ...interface{}) ([]models.DebateWithArguments, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	debates := []models.DebateWithArguments{}
	ids := []int64{}
	for rows.Next() {
		debate, err := scanDebate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		debates = append(debates, models.DebateWithArguments{Debate: *debate})
		ids = append(ids, debate.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	if len(ids) == 0 {
		return debates, nil
	}

	argRows, err := r.db.QueryContext(ctx,
		`SELECT `+argumentColumns+` FROM debate_arguments WHERE debate_id = ANY($1)
		ORDER BY debate_id, faction, order_index`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get arguments: %w", err)
	}
	defer argRows.Close()

	byDebate := make(map[int64][]models.Argument, len(ids))
	for argRows.Next() {
		arg, err := scanArgument(argRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		byDebate[arg.DebateID] = append(byDebate[arg.DebateID], *arg)
	}
	if err := argRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get arguments: %w", err)
	}

	for i := range debates {
		debates[i].Arguments = models.PartitionArguments(byDebate[debates[i].ID])
	}
	return debates, nil
}

func insertArguments(ctx context.Context, tx *sql.Tx, debateID int64, req *models.DebateRequest, now time.Time) error {
	rows := append(
		models.TransformArgumentsForInsert(models.FilterValidArguments(req.IdubuArguments), debateID, models.FactionIdubu),
		models.TransformArgumentsForInsert(models.FilterValidArguments(req.AkagaraArguments), debateID, models.FactionAkagara)...,
	)
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO debate_arguments (debate_id, faction, speaker_name, argument, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare argument insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.DebateID, row.Faction, row.SpeakerName, row.Argument, row.OrderIndex, now); err != nil {
			return fmt.Errorf("failed to insert %s argument: %w", row.Faction, err)
		}
	}
	return nil
}

func readArguments(ctx context.Context, q queryer, debateID int64) ([]models.Argument, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+argumentColumns+` FROM debate_arguments WHERE debate_id = $1 ORDER BY faction, order_index`,
		debateID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get arguments: %w", err)
	}
	defer rows.Close()

	args := []models.Argument{}
	for rows.Next() {
		arg, err := scanArgument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan argument: %w", err)
		}
		args = append(args, *arg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get arguments: %w", err)
	}
	return args, nil
}

func scanDebate(row rowScanner) (*models.Debate, error) {
	d := &models.Debate{}
	err := row.Scan(
		&d.ID,
		&d.Title,
		&d.Slug,
		&d.Topic,
		&d.Summary,
		&d.Verdict,
		&d.YoutubeVideoID,
		&d.YoutubeVideoTitle,
		&d.MainImageURL,
		&d.AuthorName,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func scanArgument(row rowScanner) (*models.Argument, error) {
	a := &models.Argument{}
	err := row.Scan(
		&a.ID,
		&a.DebateID,
		&a.Faction,
		&a.SpeakerName,
		&a.Argument,
		&a.OrderIndex,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// wrapWriteErr maps a unique violation on debates.slug to ErrSlugTaken
func wrapWriteErr(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrSlugTaken
	}
	return fmt.Errorf("%s: %w", msg, err)
}
