package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fajar-dev/be-sele-sele/internal/model"
)

type PaginationMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
	PerPage     int `json:"per_page"`
}

type PaginatedPages struct {
	Data []model.Page   `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type CreatePageParams struct {
	Title       string
	Icon        *string
	Description *string
}

type UpdatePageParams struct {
	Title       *string
	Icon        *string
	Description *string
}

type PageRepository interface {
	FindAllForUser(ctx context.Context, userEmail string, page, limit int, owned *bool) (*PaginatedPages, error)
	FindByIDForUser(ctx context.Context, id uuid.UUID, userEmail string) (*model.Page, error)
	CheckOwnership(ctx context.Context, id uuid.UUID, email string) (bool, error)
	Create(ctx context.Context, params CreatePageParams, ownerEmail string) (*model.Page, error)
	Update(ctx context.Context, id uuid.UUID, params UpdatePageParams) (*model.Page, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Touch(ctx context.Context, id uuid.UUID) (bool, error)
	GetMembers(ctx context.Context, pageID uuid.UUID, pending *bool) ([]model.Member, error)
	AddMember(ctx context.Context, pageID uuid.UUID, email string) (bool, error)
	RemoveMember(ctx context.Context, pageID uuid.UUID, email string) (bool, error)
	CountOwners(ctx context.Context, pageID uuid.UUID) (int, error)
}

type postgresPageRepository struct {
	db *sqlx.DB
}

func NewPostgresPageRepository(db *sqlx.DB) PageRepository {
	return &postgresPageRepository{db: db}
}

// memberRow carries the collaboration/user left join. A null user_id means no
// user with that email has registered, which is exactly the pending state.
type memberRow struct {
	PageID    uuid.UUID  `db:"page_id"`
	Email     string     `db:"email"`
	IsOwner   bool       `db:"is_owner"`
	UserID    *uuid.UUID `db:"user_id"`
	Name      *string    `db:"name"`
	AvatarURL *string    `db:"avatar_url"`
}

func (row memberRow) member() model.Member {
	return model.Member{
		Email:     row.Email,
		Name:      row.Name,
		AvatarURL: row.AvatarURL,
		IsOwner:   row.IsOwner,
		IsPending: row.UserID == nil,
	}
}

func (r *postgresPageRepository) FindAllForUser(ctx context.Context, userEmail string, page, limit int, owned *bool) (*PaginatedPages, error) {
	offset := (page - 1) * limit

	baseQuery := `
		SELECT p.id, p.icon, p.title, p.description, p.created_at, p.updated_at, p.deleted_at
		FROM pages p
		JOIN collaborations c ON c.page_id = p.id
		WHERE c.email = $1 AND p.deleted_at IS NULL
	`
	args := []interface{}{userEmail}
	argID := 2
	if owned != nil {
		baseQuery += fmt.Sprintf(" AND c.is_owner = $%d", argID)
		args = append(args, *owned)
		argID++
	}

	countQuery := "SELECT COUNT(*) FROM (" + baseQuery + ") AS count_query"
	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, err
	}

	// id is a UUIDv7, so the secondary sort key keeps pagination stable
	// between pages that share an updated_at.
	baseQuery += fmt.Sprintf(" ORDER BY p.updated_at DESC, p.id DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	var pages []model.Page
	if err := r.db.SelectContext(ctx, &pages, baseQuery, args...); err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []model.Page{}
	}

	if err := r.attachMembers(ctx, pages); err != nil {
		return nil, err
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}

	return &PaginatedPages{
		Data: pages,
		Meta: PaginationMeta{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  totalItems,
			PerPage:     limit,
		},
	}, nil
}

func (r *postgresPageRepository) attachMembers(ctx context.Context, pages []model.Page) error {
	if len(pages) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID)
	}

	query, args, err := sqlx.In(`
		SELECT c.page_id, c.email, c.is_owner, u.id AS user_id, u.name, u.avatar_url
		FROM collaborations c
		LEFT JOIN users u ON u.email = c.email
		WHERE c.page_id IN (?)`, ids)
	if err != nil {
		return err
	}

	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return err
	}

	byPage := make(map[uuid.UUID][]model.Member, len(pages))
	for _, row := range rows {
		byPage[row.PageID] = append(byPage[row.PageID], row.member())
	}
	for i := range pages {
		members := byPage[pages[i].ID]
		if members == nil {
			members = []model.Member{}
		}
		pages[i].Members = members
	}
	return nil
}

// FindByIDForUser returns the page only when it is live and the caller has a
// collaboration row on it. Absent page and absent access both come back as
// nil so the caller cannot tell them apart.
func (r *postgresPageRepository) FindByIDForUser(ctx context.Context, id uuid.UUID, userEmail string) (*model.Page, error) {
	var page model.Page
	query := `
		SELECT p.id, p.icon, p.title, p.description, p.created_at, p.updated_at, p.deleted_at
		FROM pages p
		JOIN collaborations c ON c.page_id = p.id
		WHERE p.id = $1 AND c.email = $2 AND p.deleted_at IS NULL
	`
	err := r.db.GetContext(ctx, &page, query, id, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

// CheckOwnership is a pure membership fact; it deliberately ignores the
// page's deleted state. Mutating callers gate on page liveness separately.
func (r *postgresPageRepository) CheckOwnership(ctx context.Context, id uuid.UUID, email string) (bool, error) {
	var isOwner bool
	query := `SELECT EXISTS(SELECT 1 FROM collaborations WHERE page_id = $1 AND email = $2 AND is_owner)`
	err := r.db.GetContext(ctx, &isOwner, query, id, email)
	if err != nil {
		return false, err
	}
	return isOwner, nil
}

// Create inserts the page and its owning collaboration row as one
// transaction; a page never exists without an owner.
func (r *postgresPageRepository) Create(ctx context.Context, params CreatePageParams, ownerEmail string) (*model.Page, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	page := &model.Page{
		ID:          uuid.Must(uuid.NewV7()),
		Icon:        params.Icon,
		Title:       params.Title,
		Description: params.Description,
	}

	insertPage := `
		INSERT INTO pages (id, icon, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, insertPage, page.ID, page.Icon, page.Title, page.Description).
		Scan(&page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return nil, err
	}

	insertOwner := `
		INSERT INTO collaborations (id, page_id, email, is_owner)
		VALUES ($1, $2, $3, TRUE)
	`
	if _, err := tx.ExecContext(ctx, insertOwner, uuid.Must(uuid.NewV7()), page.ID, ownerEmail); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return page, nil
}

// Update applies the supplied fields and bumps updated_at. Deleted pages are
// never updated; that case reports as nil, nil.
func (r *postgresPageRepository) Update(ctx context.Context, id uuid.UUID, params UpdatePageParams) (*model.Page, error) {
	setClauses := []string{}
	args := []interface{}{}
	argID := 1

	if params.Title != nil {
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", argID))
		args = append(args, *params.Title)
		argID++
	}
	if params.Icon != nil {
		setClauses = append(setClauses, fmt.Sprintf("icon = $%d", argID))
		args = append(args, *params.Icon)
		argID++
	}
	if params.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argID))
		args = append(args, *params.Description)
		argID++
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf("UPDATE pages SET %s WHERE id = $%d AND deleted_at IS NULL",
		strings.Join(setClauses, ", "), argID)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	return r.findByID(ctx, id)
}

// findByID fetches metadata without any visibility gate; callers check
// access first.
func (r *postgresPageRepository) findByID(ctx context.Context, id uuid.UUID) (*model.Page, error) {
	var page model.Page
	query := `SELECT id, icon, title, description, created_at, updated_at, deleted_at FROM pages WHERE id = $1`
	err := r.db.GetContext(ctx, &page, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

// SoftDelete is terminal and idempotent: deleting an already-deleted page
// reports false. Collaboration rows and the content body stay behind as
// unreachable orphans.
func (r *postgresPageRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Touch bumps updated_at after a content write. Reports false when the page
// is missing or deleted.
func (r *postgresPageRepository) Touch(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pages SET updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *postgresPageRepository) GetMembers(ctx context.Context, pageID uuid.UUID, pending *bool) ([]model.Member, error) {
	query := `
		SELECT c.page_id, c.email, c.is_owner, u.id AS user_id, u.name, u.avatar_url
		FROM collaborations c
		LEFT JOIN users u ON u.email = c.email
		WHERE c.page_id = $1
		ORDER BY c.created_at ASC
	`
	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, query, pageID); err != nil {
		return nil, err
	}

	members := make([]model.Member, 0, len(rows))
	for _, row := range rows {
		m := row.member()
		if pending != nil && m.IsPending != *pending {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

// AddMember reports false when the (page, email) pair already exists. The
// conflict check and the insert are one statement, so concurrent adds of the
// same member leave exactly one row.
func (r *postgresPageRepository) AddMember(ctx context.Context, pageID uuid.UUID, email string) (bool, error) {
	query := `
		INSERT INTO collaborations (id, page_id, email, is_owner)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (page_id, email) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, uuid.Must(uuid.NewV7()), pageID, email)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *postgresPageRepository) RemoveMember(ctx context.Context, pageID uuid.UUID, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM collaborations WHERE page_id = $1 AND email = $2`, pageID, email)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *postgresPageRepository) CountOwners(ctx context.Context, pageID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM collaborations WHERE page_id = $1 AND is_owner`
	if err := r.db.GetContext(ctx, &count, query, pageID); err != nil {
		return 0, err
	}
	return count, nil
}
