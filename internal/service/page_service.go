package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fajar-dev/be-sele-sele/internal/events"
	"github.com/fajar-dev/be-sele-sele/internal/model"
	"github.com/fajar-dev/be-sele-sele/internal/repository"
)

var (
	// ErrPageNotFound covers both "no such page" and "caller has no
	// access" so that existence never leaks to unauthorized callers.
	ErrPageNotFound = errors.New("page not found or access denied")
	ErrLastOwner    = errors.New("page must keep at least one owner")

	ErrContentNotFound = errors.New("page content not found")
)

// ContentStore holds markdown bodies keyed by page id. Read reports absence
// with ErrContentNotFound so callers can lazily initialize.
type ContentStore interface {
	Read(ctx context.Context, pageID uuid.UUID) (string, error)
	Write(ctx context.Context, pageID uuid.UUID, content string) error
}

type PageService interface {
	ListPages(ctx context.Context, userEmail string, page, limit int, owned *bool) (*repository.PaginatedPages, error)
	GetPage(ctx context.Context, id uuid.UUID, userEmail string) (*model.Page, error)
	CreatePage(ctx context.Context, params repository.CreatePageParams, ownerEmail string) (*model.Page, error)
	UpdatePage(ctx context.Context, id uuid.UUID, params repository.UpdatePageParams, userEmail string) (*model.Page, error)
	DeletePage(ctx context.Context, id uuid.UUID, userEmail string) error
	GetMembers(ctx context.Context, id uuid.UUID, userEmail string, pending *bool) ([]model.Member, error)
	AddMember(ctx context.Context, id uuid.UUID, targetEmail, userEmail string) (bool, error)
	RemoveMember(ctx context.Context, id uuid.UUID, targetEmail, userEmail string) (bool, error)
	IsOwner(ctx context.Context, id uuid.UUID, userEmail string) (bool, error)
	GetContent(ctx context.Context, id uuid.UUID, userEmail string) (string, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content, userEmail string) error
	PersistContent(ctx context.Context, pageID uuid.UUID, content string) error
}

type pageService struct {
	pageRepo  repository.PageRepository
	content   ContentStore
	publisher events.EventPublisher
}

func NewPageService(pageRepo repository.PageRepository, content ContentStore, publisher events.EventPublisher) PageService {
	return &pageService{
		pageRepo:  pageRepo,
		content:   content,
		publisher: publisher,
	}
}

func (s *pageService) ListPages(ctx context.Context, userEmail string, page, limit int, owned *bool) (*repository.PaginatedPages, error) {
	return s.pageRepo.FindAllForUser(ctx, userEmail, page, limit, owned)
}

func (s *pageService) GetPage(ctx context.Context, id uuid.UUID, userEmail string) (*model.Page, error) {
	page, err := s.pageRepo.FindByIDForUser(ctx, id, userEmail)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, ErrPageNotFound
	}
	return page, nil
}

// CreatePage commits metadata and the owning collaboration row together,
// then seeds an empty body. A failed seed is tolerated: the body is lazily
// initialized on first read, so the metadata transaction is never rolled
// back over it.
func (s *pageService) CreatePage(ctx context.Context, params repository.CreatePageParams, ownerEmail string) (*model.Page, error) {
	page, err := s.pageRepo.Create(ctx, params, ownerEmail)
	if err != nil {
		return nil, err
	}

	if err := s.content.Write(ctx, page.ID, ""); err != nil {
		slog.WarnContext(ctx, "Failed to seed page body, leaving it to lazy init",
			slog.String("page_id", page.ID.String()), slog.String("error", err.Error()))
	}

	go s.publisher.PublishPageCreated(page, ownerEmail)

	return page, nil
}

func (s *pageService) UpdatePage(ctx context.Context, id uuid.UUID, params repository.UpdatePageParams, userEmail string) (*model.Page, error) {
	if err := s.requireOwner(ctx, id, userEmail); err != nil {
		return nil, err
	}

	page, err := s.pageRepo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, ErrPageNotFound
	}
	return page, nil
}

func (s *pageService) DeletePage(ctx context.Context, id uuid.UUID, userEmail string) error {
	if err := s.requireOwner(ctx, id, userEmail); err != nil {
		return err
	}

	deleted, err := s.pageRepo.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPageNotFound
	}
	return nil
}

func (s *pageService) GetMembers(ctx context.Context, id uuid.UUID, userEmail string, pending *bool) ([]model.Member, error) {
	if err := s.requireRead(ctx, id, userEmail); err != nil {
		return nil, err
	}
	return s.pageRepo.GetMembers(ctx, id, pending)
}

// AddMember inserts a non-owner collaboration row for targetEmail. The
// target does not have to be a registered user; an unregistered email shows
// up as a pending invite until its first login. A duplicate add reports
// false, not an error.
func (s *pageService) AddMember(ctx context.Context, id uuid.UUID, targetEmail, userEmail string) (bool, error) {
	if err := s.requireLiveOwner(ctx, id, userEmail); err != nil {
		return false, err
	}

	added, err := s.pageRepo.AddMember(ctx, id, targetEmail)
	if err != nil {
		return false, err
	}
	if added {
		go s.publisher.PublishMemberAdded(id, targetEmail)
	}
	return added, nil
}

// RemoveMember refuses to remove the last remaining owner; a page with no
// owner could never be edited or deleted again.
func (s *pageService) RemoveMember(ctx context.Context, id uuid.UUID, targetEmail, userEmail string) (bool, error) {
	if err := s.requireLiveOwner(ctx, id, userEmail); err != nil {
		return false, err
	}

	targetIsOwner, err := s.pageRepo.CheckOwnership(ctx, id, targetEmail)
	if err != nil {
		return false, err
	}
	if targetIsOwner {
		owners, err := s.pageRepo.CountOwners(ctx, id)
		if err != nil {
			return false, err
		}
		if owners <= 1 {
			return false, ErrLastOwner
		}
	}

	removed, err := s.pageRepo.RemoveMember(ctx, id, targetEmail)
	if err != nil {
		return false, err
	}
	if removed {
		go s.publisher.PublishMemberRemoved(id, targetEmail)
	}
	return removed, nil
}

func (s *pageService) IsOwner(ctx context.Context, id uuid.UUID, userEmail string) (bool, error) {
	if err := s.requireRead(ctx, id, userEmail); err != nil {
		return false, err
	}
	return s.pageRepo.CheckOwnership(ctx, id, userEmail)
}

// GetContent reads the page body for any member. A missing body reads as
// empty and is initialized on the spot, which also repairs a page whose
// create-time seed failed.
func (s *pageService) GetContent(ctx context.Context, id uuid.UUID, userEmail string) (string, error) {
	if err := s.requireRead(ctx, id, userEmail); err != nil {
		return "", err
	}

	body, err := s.content.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) {
			if writeErr := s.content.Write(ctx, id, ""); writeErr != nil {
				slog.WarnContext(ctx, "Failed to lazily initialize page body",
					slog.String("page_id", id.String()), slog.String("error", writeErr.Error()))
			}
			return "", nil
		}
		return "", err
	}
	return body, nil
}

func (s *pageService) UpdateContent(ctx context.Context, id uuid.UUID, content, userEmail string) error {
	if err := s.requireLiveOwner(ctx, id, userEmail); err != nil {
		return err
	}

	if err := s.content.Write(ctx, id, content); err != nil {
		return err
	}

	_, err := s.pageRepo.Touch(ctx, id)
	return err
}

// PersistContent serves the realtime-editor pipeline, which has already
// authenticated its participants. Edits for missing or deleted pages are
// dropped rather than retried.
func (s *pageService) PersistContent(ctx context.Context, pageID uuid.UUID, content string) error {
	touched, err := s.pageRepo.Touch(ctx, pageID)
	if err != nil {
		return err
	}
	if !touched {
		slog.WarnContext(ctx, "Dropping content for missing or deleted page",
			slog.String("page_id", pageID.String()))
		return nil
	}
	return s.content.Write(ctx, pageID, content)
}

// requireRead passes for any member of a live page.
func (s *pageService) requireRead(ctx context.Context, id uuid.UUID, userEmail string) error {
	page, err := s.pageRepo.FindByIDForUser(ctx, id, userEmail)
	if err != nil {
		return err
	}
	if page == nil {
		return ErrPageNotFound
	}
	return nil
}

// requireOwner gates mutations whose queries already filter out deleted
// pages. Non-owners get the same answer as callers of a missing page.
func (s *pageService) requireOwner(ctx context.Context, id uuid.UUID, userEmail string) error {
	isOwner, err := s.pageRepo.CheckOwnership(ctx, id, userEmail)
	if err != nil {
		return err
	}
	if !isOwner {
		return ErrPageNotFound
	}
	return nil
}

// requireLiveOwner additionally confirms the page has not been soft deleted,
// for mutations that touch rows other than pages itself.
func (s *pageService) requireLiveOwner(ctx context.Context, id uuid.UUID, userEmail string) error {
	if err := s.requireRead(ctx, id, userEmail); err != nil {
		return err
	}
	return s.requireOwner(ctx, id, userEmail)
}
