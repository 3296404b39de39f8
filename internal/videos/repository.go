package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newtube/backend/internal/models"
)

const videoColumns = `id, user_id, title, description, category_id, visibility,
	mux_status, mux_asset_id, mux_upload_id, mux_playback_id, mux_track_id, mux_track_status,
	thumbnail_url, thumbnail_key, preview_url, preview_key, duration, created_at, updated_at`

// Repository handles video persistence. Every mutation is a single predicate-scoped
// statement; concurrent webhook deliveries rely on the row-level atomicity of UPDATE.
// Only owner edits bump updated_at, so provider callbacks never reorder the studio list.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a videos repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.CategoryID, &v.Visibility,
		&v.MuxStatus, &v.MuxAssetID, &v.MuxUploadID, &v.MuxPlaybackID, &v.MuxTrackID, &v.MuxTrackStatus,
		&v.ThumbnailURL, &v.ThumbnailKey, &v.PreviewURL, &v.PreviewKey, &v.Duration, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Create inserts v and fills its generated columns.
func (r *Repository) Create(ctx context.Context, v *models.Video) error {
	if v.Visibility == "" {
		v.Visibility = models.VisibilityPrivate
	}
	q := `INSERT INTO videos (user_id, title, description, category_id, visibility, mux_status, mux_upload_id, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + videoColumns
	created, err := scanVideo(r.pool.QueryRow(ctx, q, v.UserID, v.Title, v.Description, v.CategoryID, v.Visibility,
		v.MuxStatus, v.MuxUploadID, v.Duration))
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	*v = *created
	return nil
}

// GetOwned returns the video with id owned by userID.
func (r *Repository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_id = $2`
	return scanVideo(r.pool.QueryRow(ctx, q, id, userID))
}

// GetByUploadID returns the video correlated with a provider upload.
func (r *Repository) GetByUploadID(ctx context.Context, uploadID string) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE mux_upload_id = $1`
	return scanVideo(r.pool.QueryRow(ctx, q, uploadID))
}

// updateSet builds the SET clause of a partial update. Placeholders start at $3
// ($1 and $2 are the id and owner predicates).
func updateSet(u models.VideoUpdate) (string, []any) {
	sets := []string{"updated_at = NOW()"}
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+2))
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description.Set {
		add("description", u.Description.Ptr())
	}
	if u.CategoryID.Set {
		add("category_id", u.CategoryID.Ptr())
	}
	if u.Visibility != nil {
		add("visibility", *u.Visibility)
	}
	return strings.Join(sets, ", "), args
}

// UpdateOwned applies u to the video with id owned by userID and bumps updated_at.
func (r *Repository) UpdateOwned(ctx context.Context, id, userID uuid.UUID, u models.VideoUpdate) (*models.Video, error) {
	set, args := updateSet(u)
	q := `UPDATE videos SET ` + set + ` WHERE id = $1 AND user_id = $2 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, append([]any{id, userID}, args...)...))
}

// SetThumbnail replaces the stored thumbnail of an owned video.
func (r *Repository) SetThumbnail(ctx context.Context, id, userID uuid.UUID, url, key string) (*models.Video, error) {
	q := `UPDATE videos SET thumbnail_url = $3, thumbnail_key = $4
		WHERE id = $1 AND user_id = $2 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, id, userID, url, key))
}

// DeleteOwned deletes the video with id owned by userID and returns the removed row.
func (r *Repository) DeleteOwned(ctx context.Context, id, userID uuid.UUID) (*models.Video, error) {
	q := `DELETE FROM videos WHERE id = $1 AND user_id = $2 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, id, userID))
}

// listQuery builds the keyset page query: newest first by (updated_at, id),
// strictly after cursor, limit+1 rows to detect a further page.
func listQuery(userID uuid.UUID, cursor *models.Cursor, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + videoColumns + ` FROM videos WHERE user_id = $1`)
	args := []any{userID}
	if cursor != nil {
		b.WriteString(` AND (updated_at < $2 OR (updated_at = $2 AND id < $3))`)
		args = append(args, cursor.UpdatedAt, cursor.ID)
	}
	args = append(args, limit+1)
	fmt.Fprintf(&b, ` ORDER BY updated_at DESC, id DESC LIMIT $%d`, len(args))
	return b.String(), args
}

// ListPage returns one keyset page of userID's videos.
func (r *Repository) ListPage(ctx context.Context, userID uuid.UUID, cursor *models.Cursor, limit int) (*models.VideoPage, error) {
	q, args := listQuery(userID, cursor, limit)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Paginate(list, limit), nil
}

// Paginate turns up to limit+1 ordered rows into a page. A further page exists
// only when the extra row was returned.
func Paginate(rows []models.Video, limit int) *models.VideoPage {
	hasMore := len(rows) > limit
	items := rows
	if hasMore {
		items = rows[:limit]
	}
	if items == nil {
		items = []models.Video{}
	}
	page := &models.VideoPage{Items: items}
	if hasMore {
		last := items[len(items)-1]
		page.NextCursor = &models.Cursor{ID: last.ID, UpdatedAt: last.UpdatedAt}
	}
	return page
}

// SetAssetCreated records the provider asset id for an upload.
func (r *Repository) SetAssetCreated(ctx context.Context, uploadID, assetID, status string) (*models.Video, error) {
	q := `UPDATE videos SET mux_asset_id = $2, mux_status = $3
		WHERE mux_upload_id = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, uploadID, assetID, status))
}

// SetAssetReady writes the playback state and derived assets for an upload.
func (r *Repository) SetAssetReady(ctx context.Context, uploadID string, a models.AssetReady) (*models.Video, error) {
	q := `UPDATE videos SET mux_status = $2, mux_playback_id = $3, mux_asset_id = $4,
			thumbnail_url = $5, thumbnail_key = $6, preview_url = $7, preview_key = $8,
			duration = $9
		WHERE mux_upload_id = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, uploadID, a.MuxStatus, a.MuxPlaybackID, a.MuxAssetID,
		a.ThumbnailURL, a.ThumbnailKey, a.PreviewURL, a.PreviewKey, a.Duration))
}

// SetAssetStatus sets the provider status for an upload.
func (r *Repository) SetAssetStatus(ctx context.Context, uploadID, status string) (*models.Video, error) {
	q := `UPDATE videos SET mux_status = $2
		WHERE mux_upload_id = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, uploadID, status))
}

// SetTrackReady records the subtitle track of an asset.
func (r *Repository) SetTrackReady(ctx context.Context, assetID, trackID, status string) (*models.Video, error) {
	q := `UPDATE videos SET mux_track_id = $2, mux_track_status = $3
		WHERE mux_asset_id = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, assetID, trackID, status))
}

// DeleteByAssetID deletes the video correlated with a provider asset.
func (r *Repository) DeleteByAssetID(ctx context.Context, assetID string) (*models.Video, error) {
	q := `DELETE FROM videos WHERE mux_asset_id = $1 RETURNING ` + videoColumns
	return scanVideo(r.pool.QueryRow(ctx, q, assetID))
}
