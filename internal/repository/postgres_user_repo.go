package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/skillswap/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, location, photo_url,
	skills_offered, skills_wanted, availability,
	is_public, is_admin, is_banned, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var availability []string
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Location, &user.PhotoURL,
		pq.Array(&user.SkillsOffered), pq.Array(&user.SkillsWanted), pq.Array(&availability),
		&user.IsPublic, &user.IsAdmin, &user.IsBanned, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Availability = stringsToAvailability(availability)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, location, photo_url,
			skills_offered, skills_wanted, availability,
			is_public, is_admin, is_banned, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Location, user.PhotoURL,
		pq.Array(nonNil(user.SkillsOffered)), pq.Array(nonNil(user.SkillsWanted)),
		pq.Array(availabilityToStrings(user.Availability)),
		user.IsPublic, user.IsAdmin, user.IsBanned, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile は本人が編集可能なプロフィール項目を更新する。
// is_admin、is_banned、password_hash、photo_urlは変更しない。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET email = $2, name = $3, location = $4,
			 skills_offered = $5, skills_wanted = $6, availability = $7,
			 is_public = $8, updated_at = $9
		 WHERE id = $1`,
		user.ID, user.Email, user.Name, user.Location,
		pq.Array(nonNil(user.SkillsOffered)), pq.Array(nonNil(user.SkillsWanted)),
		pq.Array(availabilityToStrings(user.Availability)),
		user.IsPublic, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// UpdatePhotoURL はプロフィール画像のURLを更新する。
func (r *PostgresUserRepo) UpdatePhotoURL(ctx context.Context, userID, photoURL string, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET photo_url = $2, updated_at = $3 WHERE id = $1`,
		userID, photoURL, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user photo: %w", err)
	}
	return nil
}

// SetBanned はBANフラグを更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresUserRepo) SetBanned(ctx context.Context, userID string, banned bool, updatedAt time.Time) (bool, error) {
	if !isUUID(userID) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_banned = $2, updated_at = $3 WHERE id = $1`,
		userID, banned, updatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update ban flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListPublic は公開ディレクトリに掲載するユーザーを作成順で返す。
func (r *PostgresUserRepo) ListPublic(ctx context.Context) ([]*model.User, error) {
	return r.list(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE is_public AND NOT is_banned
		   AND (cardinality(skills_offered) > 0 OR cardinality(skills_wanted) > 0)
		 ORDER BY created_at, id`,
	)
}

// ListAll は全ユーザーを作成順で返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r *PostgresUserRepo) list(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// nonNil はNOT NULLのtext[]カラムへnilを書き込まないよう空スライスに置き換える。
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
