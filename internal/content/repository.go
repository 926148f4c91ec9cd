// AngelaMos | 2026
// repository.go

package content

import (
	"context"
	"fmt"

	"github.com/angelamos/soundshare/internal/core"
)

// Repository is the write side of user-owned content that account deletion
// has to touch. Every counter it lowers is clamped at zero.
type Repository interface {
	ListSoundsByOwner(ctx context.Context, userID int64) ([]Sound, error)
	MarkSoundsIndexDirty(ctx context.Context, userID int64) ([]int64, error)
	RemoveSounds(ctx context.Context, userID int64) (*SoundRemoval, error)
	SoftDeletePacks(ctx context.Context, userID int64) ([]int64, error)
	RemoveSocialContent(ctx context.Context, userID int64) (*SocialRemoval, error)
	ListDeletedSounds(ctx context.Context, userID int64) ([]DeletedSound, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) ListSoundsByOwner(
	ctx context.Context,
	userID int64,
) ([]Sound, error) {
	query := `
		SELECT id, user_id, pack_id, filename, description, license,
		       num_downloads, num_comments, is_index_dirty, created_at
		FROM sounds
		WHERE user_id = $1
		ORDER BY id`

	var sounds []Sound
	if err := r.db.SelectContext(ctx, &sounds, query, userID); err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}

	return sounds, nil
}

// MarkSoundsIndexDirty flags the owner's sounds for reindexing. The index
// entries still carry the old username until the next indexing pass.
func (r *repository) MarkSoundsIndexDirty(
	ctx context.Context,
	userID int64,
) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE sounds SET is_index_dirty = TRUE
		WHERE user_id = $1
		RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("mark sounds dirty: %w", err)
	}

	return ids, nil
}

// RemoveSounds tombstones and deletes every sound userID owns. Downloads of
// those sounds go first so the downloaders' counters can be lowered.
func (r *repository) RemoveSounds(
	ctx context.Context,
	userID int64,
) (*SoundRemoval, error) {
	tombstone := `
		INSERT INTO deleted_sounds (sound_id, user_id, data)
		SELECT s.id, s.user_id, jsonb_build_object(
			'id', s.id,
			'user_id', s.user_id,
			'username', a.username,
			'pack_id', s.pack_id,
			'filename', s.filename,
			'description', s.description,
			'license', s.license,
			'num_downloads', s.num_downloads,
			'num_comments', s.num_comments,
			'created', s.created_at
		)
		FROM sounds s
		JOIN accounts a ON a.id = s.user_id
		WHERE s.user_id = $1
		ON CONFLICT (sound_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, tombstone, userID)
	if err != nil {
		return nil, fmt.Errorf("tombstone sounds: %w", err)
	}

	removal := &SoundRemoval{}
	if removal.Tombstoned, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("tombstone sounds: %w", err)
	}

	downloads := `
		WITH removed AS (
			DELETE FROM downloads d
			USING sounds s
			WHERE d.sound_id = s.id AND s.user_id = $1
			RETURNING d.user_id
		), per_user AS (
			SELECT user_id, COUNT(*) AS n FROM removed GROUP BY user_id
		), lowered AS (
			UPDATE accounts a
			SET num_sound_downloads = GREATEST(a.num_sound_downloads - per_user.n, 0)
			FROM per_user
			WHERE a.id = per_user.user_id
		)
		SELECT COUNT(*) FROM removed`

	if err := r.db.GetContext(ctx, &removal.DownloadsRemoved, downloads, userID); err != nil {
		return nil, fmt.Errorf("remove sound downloads: %w", err)
	}

	err = r.db.SelectContext(ctx, &removal.SoundIDs,
		`DELETE FROM sounds WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("delete sounds: %w", err)
	}

	return removal, nil
}

func (r *repository) SoftDeletePacks(
	ctx context.Context,
	userID int64,
) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE packs SET is_deleted = TRUE
		WHERE user_id = $1 AND is_deleted = FALSE
		RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("soft delete packs: %w", err)
	}

	return ids, nil
}

// RemoveSocialContent deletes what userID contributed around the sounds:
// comments, forum posts and threads, download records and packs. Posts by
// other users inside the removed threads go too, with their authors'
// counters lowered.
func (r *repository) RemoveSocialContent(
	ctx context.Context,
	userID int64,
) (*SocialRemoval, error) {
	var removal SocialRemoval

	steps := []struct {
		op    string
		dest  *int64
		query string
	}{
		{"remove comments", &removal.Comments, removeCommentsQuery},
		{"remove posts", &removal.Posts, removePostsQuery},
		{"remove thread replies", &removal.ForeignPosts, removeThreadRepliesQuery},
		{"remove threads", &removal.Threads, removeThreadsQuery},
		{"remove downloads", &removal.Downloads, removeDownloadsQuery},
		{"remove pack downloads", &removal.PackDownloads, removePackDownloadsQuery},
		{"remove downloads of packs", &removal.ForeignPackDLs, removeDownloadsOfPacksQuery},
		{"remove packs", &removal.Packs, removePacksQuery},
	}

	for _, step := range steps {
		if err := r.db.GetContext(ctx, step.dest, step.query, userID); err != nil {
			return nil, fmt.Errorf("%s: %w", step.op, err)
		}
	}

	return &removal, nil
}

func (r *repository) ListDeletedSounds(
	ctx context.Context,
	userID int64,
) ([]DeletedSound, error) {
	query := `
		SELECT id, sound_id, user_id, data, created_at
		FROM deleted_sounds
		WHERE user_id = $1
		ORDER BY sound_id`

	var sounds []DeletedSound
	if err := r.db.SelectContext(ctx, &sounds, query, userID); err != nil {
		return nil, fmt.Errorf("list deleted sounds: %w", err)
	}

	return sounds, nil
}

const removeCommentsQuery = `
	WITH removed AS (
		DELETE FROM comments WHERE user_id = $1 RETURNING sound_id
	), per_sound AS (
		SELECT sound_id, COUNT(*) AS n FROM removed GROUP BY sound_id
	), lowered AS (
		UPDATE sounds s
		SET num_comments = GREATEST(s.num_comments - per_sound.n, 0)
		FROM per_sound
		WHERE s.id = per_sound.sound_id
	)
	SELECT COUNT(*) FROM removed`

const removePostsQuery = `
	WITH removed AS (
		DELETE FROM posts WHERE author_id = $1 RETURNING thread_id
	), per_thread AS (
		SELECT thread_id, COUNT(*) AS n FROM removed GROUP BY thread_id
	), threads_lowered AS (
		UPDATE threads t
		SET num_posts = GREATEST(t.num_posts - per_thread.n, 0)
		FROM per_thread
		WHERE t.id = per_thread.thread_id
		RETURNING t.forum_id, per_thread.n
	), forums_lowered AS (
		UPDATE forums f
		SET num_posts = GREATEST(f.num_posts - per_forum.n, 0)
		FROM (
			SELECT forum_id, SUM(n) AS n FROM threads_lowered GROUP BY forum_id
		) per_forum
		WHERE f.id = per_forum.forum_id
	), account_lowered AS (
		UPDATE accounts
		SET num_posts = GREATEST(num_posts - (SELECT COUNT(*) FROM removed), 0)
		WHERE id = $1
	)
	SELECT COUNT(*) FROM removed`

const removeThreadRepliesQuery = `
	WITH removed AS (
		DELETE FROM posts p
		USING threads t
		WHERE p.thread_id = t.id AND t.author_id = $1
		RETURNING p.author_id, t.forum_id
	), per_author AS (
		SELECT author_id, COUNT(*) AS n FROM removed GROUP BY author_id
	), authors_lowered AS (
		UPDATE accounts a
		SET num_posts = GREATEST(a.num_posts - per_author.n, 0)
		FROM per_author
		WHERE a.id = per_author.author_id
	), per_forum AS (
		SELECT forum_id, COUNT(*) AS n FROM removed GROUP BY forum_id
	), forums_lowered AS (
		UPDATE forums f
		SET num_posts = GREATEST(f.num_posts - per_forum.n, 0)
		FROM per_forum
		WHERE f.id = per_forum.forum_id
	)
	SELECT COUNT(*) FROM removed`

const removeThreadsQuery = `
	WITH removed AS (
		DELETE FROM threads WHERE author_id = $1 RETURNING forum_id
	), per_forum AS (
		SELECT forum_id, COUNT(*) AS n FROM removed GROUP BY forum_id
	), forums_lowered AS (
		UPDATE forums f
		SET num_threads = GREATEST(f.num_threads - per_forum.n, 0)
		FROM per_forum
		WHERE f.id = per_forum.forum_id
	)
	SELECT COUNT(*) FROM removed`

const removeDownloadsQuery = `
	WITH removed AS (
		DELETE FROM downloads WHERE user_id = $1 RETURNING sound_id
	), per_sound AS (
		SELECT sound_id, COUNT(*) AS n FROM removed GROUP BY sound_id
	), lowered AS (
		UPDATE sounds s
		SET num_downloads = GREATEST(s.num_downloads - per_sound.n, 0)
		FROM per_sound
		WHERE s.id = per_sound.sound_id
	)
	SELECT COUNT(*) FROM removed`

const removePackDownloadsQuery = `
	WITH removed AS (
		DELETE FROM pack_downloads WHERE user_id = $1 RETURNING pack_id
	), per_pack AS (
		SELECT pack_id, COUNT(*) AS n FROM removed GROUP BY pack_id
	), lowered AS (
		UPDATE packs p
		SET num_downloads = GREATEST(p.num_downloads - per_pack.n, 0)
		FROM per_pack
		WHERE p.id = per_pack.pack_id
	)
	SELECT COUNT(*) FROM removed`

const removeDownloadsOfPacksQuery = `
	WITH removed AS (
		DELETE FROM pack_downloads pd
		USING packs p
		WHERE pd.pack_id = p.id AND p.user_id = $1
		RETURNING pd.user_id
	), per_user AS (
		SELECT user_id, COUNT(*) AS n FROM removed GROUP BY user_id
	), lowered AS (
		UPDATE accounts a
		SET num_pack_downloads = GREATEST(a.num_pack_downloads - per_user.n, 0)
		FROM per_user
		WHERE a.id = per_user.user_id
	)
	SELECT COUNT(*) FROM removed`

const removePacksQuery = `
	WITH removed AS (
		DELETE FROM packs WHERE user_id = $1 RETURNING id
	)
	SELECT COUNT(*) FROM removed`
