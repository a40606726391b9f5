// Package sqlstore implements the record store on database/sql, using SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
	"github.com/mcoot/kidfeed/internal/storage/notify"
)

// Storage is a database/sql implementation of the storage interface.
// Placeholders are $N and always appear in ascending order, which both drivers accept.
type Storage struct {
	storage.Notifier

	db     *sql.DB
	driver string
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects to the configured database and applies the schema
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.Driver == DriverPostgres {
		s.Notifier = newPGNotifier(db, cfg.DSN)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Notifications stay in-process.
func NewWithDB(db *sql.DB, driver string) *Storage {
	return &Storage{
		Notifier: notify.New(),
		db:       db,
		driver:   driver,
	}
}

// Migrate creates any missing tables
func (s *Storage) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database and any notification listener
func (s *Storage) Close() error {
	if c, ok := s.Notifier.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return s.db.Close()
}

// withTx runs f in a transaction, rolling back on error or panic
func (s *Storage) withTx(ctx context.Context, f func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return f(tx)
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (handle, display_name, bio, role, profile_picture, post_count,
		                      password_hash, pin_hash, parent_handle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (handle) DO NOTHING`,
		account.Handle,
		account.DisplayName,
		account.Bio,
		account.Role,
		account.ProfilePicture,
		account.PostCount,
		account.PasswordHash,
		account.PinHash,
		account.ParentHandle,
		account.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrDuplicateHandle
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, handle model.Handle) (*model.Account, error) {
	var (
		account   model.Account
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT handle, display_name, bio, role, profile_picture, post_count,
		       password_hash, pin_hash, parent_handle, created_at
		FROM accounts
		WHERE handle = $1`, handle).Scan(
		&account.Handle,
		&account.DisplayName,
		&account.Bio,
		&account.Role,
		&account.ProfilePicture,
		&account.PostCount,
		&account.PasswordHash,
		&account.PinHash,
		&account.ParentHandle,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	account.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &account, nil
}

func (s *Storage) UpdateProfilePicture(ctx context.Context, handle model.Handle, avatar model.AvatarID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET profile_picture = $1 WHERE handle = $2`, avatar, handle)
	if err != nil {
		return err
	}
	return requireRow(res, model.ErrAccountNotFound)
}

// Policy operations

func (s *Storage) SavePolicy(ctx context.Context, child model.Handle, policy model.Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (handle, session_budget_minutes, content_filter_enabled,
		                      post_approval_required, view_only)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (handle) DO UPDATE SET
			session_budget_minutes = excluded.session_budget_minutes,
			content_filter_enabled = excluded.content_filter_enabled,
			post_approval_required = excluded.post_approval_required,
			view_only = excluded.view_only`,
		child,
		policy.SessionBudgetMinutes,
		policy.ContentFilterEnabled,
		policy.PostApprovalRequired,
		policy.ViewOnly,
	)
	return err
}

func (s *Storage) GetPolicy(ctx context.Context, child model.Handle) (*model.Policy, error) {
	return getPolicy(ctx, s.db, child)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPolicy(ctx context.Context, q queryRower, child model.Handle) (*model.Policy, error) {
	var policy model.Policy
	err := q.QueryRowContext(ctx, `
		SELECT session_budget_minutes, content_filter_enabled, post_approval_required, view_only
		FROM policies
		WHERE handle = $1`, child).Scan(
		&policy.SessionBudgetMinutes,
		&policy.ContentFilterEnabled,
		&policy.PostApprovalRequired,
		&policy.ViewOnly,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPolicyNotFound
		}
		return nil, err
	}
	return &policy, nil
}

func (s *Storage) UpdatePolicy(ctx context.Context, child model.Handle, patch model.PolicyPatch) (*model.Policy, error) {
	var updated *model.Policy
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		defaults := model.DefaultPolicy()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO policies (handle, session_budget_minutes, content_filter_enabled,
			                      post_approval_required, view_only)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (handle) DO NOTHING`,
			child,
			defaults.SessionBudgetMinutes,
			defaults.ContentFilterEnabled,
			defaults.PostApprovalRequired,
			defaults.ViewOnly,
		); err != nil {
			return err
		}

		// nil pointers bind as NULL, leaving the column unchanged
		if _, err := tx.ExecContext(ctx, `
			UPDATE policies SET
				session_budget_minutes = COALESCE($1, session_budget_minutes),
				content_filter_enabled = COALESCE($2, content_filter_enabled),
				post_approval_required = COALESCE($3, post_approval_required),
				view_only = COALESCE($4, view_only)
			WHERE handle = $5`,
			patch.SessionBudgetMinutes,
			patch.ContentFilterEnabled,
			patch.PostApprovalRequired,
			patch.ViewOnly,
			child,
		); err != nil {
			return err
		}

		var err error
		updated, err = getPolicy(ctx, tx, child)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Post operations

func (s *Storage) CreatePost(ctx context.Context, post *model.Post) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET post_count = post_count + 1 WHERE handle = $1`, post.AuthorHandle)
		if err != nil {
			return err
		}
		if err := requireRow(res, model.ErrAccountNotFound); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO posts (id, author_handle, author_display_name, content, avatar_snapshot, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			post.ID,
			post.AuthorHandle,
			post.AuthorDisplayName,
			post.Content,
			post.AvatarSnapshot,
			post.CreatedAt.UnixMilli(),
		)
		return err
	})
}

const selectPosts = `
	SELECT p.id, p.author_handle, p.author_display_name, p.content, p.avatar_snapshot, p.created_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id)
	FROM posts p`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		post      model.Post
		createdAt int64
	)
	if err := row.Scan(
		&post.ID,
		&post.AuthorHandle,
		&post.AuthorDisplayName,
		&post.Content,
		&post.AvatarSnapshot,
		&createdAt,
		&post.Likes,
	); err != nil {
		return nil, err
	}
	post.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &post, nil
}

func (s *Storage) GetPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, selectPosts+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *Storage) ListPosts(ctx context.Context) ([]*model.Post, error) {
	rows, err := s.db.QueryContext(ctx, selectPosts+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// Like operations

func (s *Storage) SetLike(ctx context.Context, id model.PostID, handle model.Handle, like bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = $1`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrPostNotFound
			}
			return err
		}

		if like {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO likes (post_id, handle) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, handle)
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM likes WHERE post_id = $1 AND handle = $2`, id, handle)
		}
		return err
	})
}

func (s *Storage) LikedPosts(ctx context.Context, handle model.Handle) (map[model.PostID]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT post_id FROM likes WHERE handle = $1`, handle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	liked := make(map[model.PostID]bool)
	for rows.Next() {
		var id model.PostID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
