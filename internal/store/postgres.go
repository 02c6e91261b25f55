package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hashscope/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Campaigns ---

const campaignColumns = `id, user_id, title, description, hashtag, status, last_run, job_id, last_error, created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.Hashtag, &c.Status,
		&c.LastRun, &c.JobID, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.CreatedAt.IsZero() {
		now := time.Now().UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, user_id, title, description, hashtag, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Title, c.Description, c.Hashtag, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Campaign, error) {
	c, err := scanCampaign(s.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]*models.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// DeleteCampaign removes a campaign and its posts unconditionally, regardless
// of any job still in flight for it.
func (s *PostgresStore) DeleteCampaign(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string, opts ...CampaignUpdateOption) error {
	params := &campaignUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	now := time.Now().UTC()
	query := `UPDATE campaigns SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if params.JobID != nil {
		query += fmt.Sprintf(", job_id = $%d", argIdx)
		args = append(args, *params.JobID)
		argIdx++
	}
	if params.LastRun != nil {
		query += fmt.Sprintf(", last_run = $%d", argIdx)
		args = append(args, *params.LastRun)
		argIdx++
	}
	if params.LastError != nil {
		query += fmt.Sprintf(", last_error = $%d", argIdx)
		args = append(args, *params.LastError)
		argIdx++
	} else if params.ClearLastError {
		query += ", last_error = NULL"
	}

	query += " WHERE id = $1"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Posts ---

const postColumns = `id, campaign_id, post_date, author_name, post_link, likes, comments, shares, hashtags, content, created_at`

// UpsertPosts writes a batch of posts, refreshing engagement counters and
// content for posts already seen on a previous run of the same campaign.
// Posts with an empty link fall outside the conflict key and always insert:
// the scraper sometimes yields items without a postUrl, and collapsing them
// into one row would lose data.
func (s *PostgresStore) UpsertPosts(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(
			`INSERT INTO posts (id, campaign_id, post_date, author_name, post_link, likes, comments, shares, hashtags, content, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (campaign_id, post_link) WHERE post_link <> '' DO UPDATE SET
			   post_date = EXCLUDED.post_date,
			   author_name = EXCLUDED.author_name,
			   likes = EXCLUDED.likes,
			   comments = EXCLUDED.comments,
			   shares = EXCLUDED.shares,
			   hashtags = EXCLUDED.hashtags,
			   content = EXCLUDED.content`,
			p.ID, p.CampaignID, p.PostDate, p.AuthorName, p.PostLink,
			p.Likes, p.Comments, p.Shares, p.Hashtags, p.Content, p.CreatedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range posts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert posts: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListPostsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE campaign_id = $1 ORDER BY post_date DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list posts by campaign: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

func (s *PostgresStore) ListPostsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.campaign_id, p.post_date, p.author_name, p.post_link, p.likes, p.comments, p.shares, p.hashtags, p.content, p.created_at
		 FROM posts p JOIN campaigns c ON c.id = p.campaign_id
		 WHERE c.user_id = $1 ORDER BY p.post_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list posts by user: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

func scanPosts(rows pgx.Rows) ([]*models.Post, error) {
	posts := []*models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.PostDate, &p.AuthorName, &p.PostLink,
			&p.Likes, &p.Comments, &p.Shares, &p.Hashtags, &p.Content, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// --- Integration settings ---

func (s *PostgresStore) GetIntegrationSettings(ctx context.Context, userID uuid.UUID) (*models.IntegrationSettings, error) {
	var is models.IntegrationSettings
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, li_at, jsessionid, apify_api_token, created_at, updated_at
		 FROM integration_settings WHERE user_id = $1`, userID,
	).Scan(&is.UserID, &is.LiAt, &is.JSessionID, &is.ApifyAPIToken, &is.CreatedAt, &is.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration settings: %w", err)
	}
	return &is, nil
}

func (s *PostgresStore) UpsertIntegrationSettings(ctx context.Context, in *models.IntegrationSettings) (*models.IntegrationSettings, error) {
	if in.CreatedAt.IsZero() {
		now := time.Now().UTC()
		in.CreatedAt = now
		in.UpdatedAt = now
	}
	var is models.IntegrationSettings
	err := s.pool.QueryRow(ctx,
		`INSERT INTO integration_settings (user_id, li_at, jsessionid, apify_api_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   li_at = EXCLUDED.li_at,
		   jsessionid = EXCLUDED.jsessionid,
		   apify_api_token = EXCLUDED.apify_api_token,
		   updated_at = NOW()
		 RETURNING user_id, li_at, jsessionid, apify_api_token, created_at, updated_at`,
		in.UserID, in.LiAt, in.JSessionID, in.ApifyAPIToken, in.CreatedAt, in.UpdatedAt,
	).Scan(&is.UserID, &is.LiAt, &is.JSessionID, &is.ApifyAPIToken, &is.CreatedAt, &is.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert integration settings: %w", err)
	}
	return &is, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
