package repository

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fajar-dev/be-sele-sele/internal/model"
	_ "github.com/fajar-dev/be-sele-sele/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PageRepositoryIntegrationTestSuite struct {
	suite.Suite
	db     *sqlx.DB
	pages  PageRepository
	users  UserRepository
	tokens TokenRepository
	pgc    *postgres.PostgresContainer
	ctx    context.Context
}

func (s *PageRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	pgc, err := postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	s.pgc = pgc

	connStr, err := pgc.ConnectionString(s.ctx, "sslmode=disable")
	assert.NoError(s.T(), err)

	db, err := sqlx.Connect("pgx", connStr)
	assert.NoError(s.T(), err)
	s.db = db

	err = goose.Up(db.DB, "../../migrations")
	assert.NoError(s.T(), err)

	s.pages = NewPostgresPageRepository(s.db)
	s.users = NewPostgresUserRepository(s.db)
	s.tokens = NewPostgresTokenRepository(s.db)
}

func (s *PageRepositoryIntegrationTestSuite) TearDownSuite() {
	s.db.Close()
	if err := s.pgc.Terminate(s.ctx); err != nil {
		log.Fatalf("failed to terminate pg container: %s", err)
	}
}

func (s *PageRepositoryIntegrationTestSuite) login(email string) *model.User {
	user, err := s.users.Upsert(s.ctx, UpsertUserParams{
		Email:       email,
		LastLoginIP: "127.0.0.1",
		LastLoginAt: time.Now().UTC(),
	})
	assert.NoError(s.T(), err)
	return user
}

func (s *PageRepositoryIntegrationTestSuite) TestCreateMakesSoleNonPendingOwner() {
	alice := s.login("alice@integration.test")

	page, err := s.pages.Create(s.ctx, CreatePageParams{Title: "Alice's Page"}, alice.Email)
	assert.NoError(s.T(), err)
	assert.NotNil(s.T(), page)

	members, err := s.pages.GetMembers(s.ctx, page.ID, nil)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), members, 1)
	assert.Equal(s.T(), alice.Email, members[0].Email)
	assert.True(s.T(), members[0].IsOwner)
	assert.False(s.T(), members[0].IsPending)
}

func (s *PageRepositoryIntegrationTestSuite) TestInviteResolvesOnFirstLogin() {
	alice := s.login("alice2@integration.test")
	page, err := s.pages.Create(s.ctx, CreatePageParams{Title: "Shared"}, alice.Email)
	assert.NoError(s.T(), err)

	added, err := s.pages.AddMember(s.ctx, page.ID, "bob@integration.test")
	assert.NoError(s.T(), err)
	assert.True(s.T(), added)

	pending := true
	members, err := s.pages.GetMembers(s.ctx, page.ID, &pending)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), members, 1)
	assert.Equal(s.T(), "bob@integration.test", members[0].Email)

	// Bob registers; no collaboration row is touched, yet the invite is
	// no longer pending.
	s.login("bob@integration.test")

	members, err = s.pages.GetMembers(s.ctx, page.ID, &pending)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), members, 0)

	all, err := s.pages.GetMembers(s.ctx, page.ID, nil)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), all, 2)
}

func (s *PageRepositoryIntegrationTestSuite) TestSoftDeleteHidesPage() {
	alice := s.login("alice3@integration.test")
	page, err := s.pages.Create(s.ctx, CreatePageParams{Title: "Doomed"}, alice.Email)
	assert.NoError(s.T(), err)

	deleted, err := s.pages.SoftDelete(s.ctx, page.ID)
	assert.NoError(s.T(), err)
	assert.True(s.T(), deleted)

	found, err := s.pages.FindByIDForUser(s.ctx, page.ID, alice.Email)
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), found)

	touched, err := s.pages.Touch(s.ctx, page.ID)
	assert.NoError(s.T(), err)
	assert.False(s.T(), touched)
}

func (s *PageRepositoryIntegrationTestSuite) TestDuplicateAddReportsFalse() {
	alice := s.login("alice4@integration.test")
	page, err := s.pages.Create(s.ctx, CreatePageParams{Title: "Dup"}, alice.Email)
	assert.NoError(s.T(), err)

	added, err := s.pages.AddMember(s.ctx, page.ID, "carol@integration.test")
	assert.NoError(s.T(), err)
	assert.True(s.T(), added)

	added, err = s.pages.AddMember(s.ctx, page.ID, "carol@integration.test")
	assert.NoError(s.T(), err)
	assert.False(s.T(), added)
}

func (s *PageRepositoryIntegrationTestSuite) TestConcurrentTokenConsumeSucceedsOnce() {
	user := s.login("racer@integration.test")

	err := s.tokens.Create(s.ctx, &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: "race-hash",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.NoError(s.T(), err)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan *model.RefreshToken, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.tokens.ConsumeByHash(s.ctx, "race-hash")
			assert.NoError(s.T(), err)
			results <- token
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for token := range results {
		if token != nil {
			wins++
			assert.Equal(s.T(), user.ID, token.UserID)
		}
	}
	assert.Equal(s.T(), 1, wins)
}

func TestPageRepositoryIntegration(t *testing.T) {
	if os.Getenv("DOCKER_HOST") == "" {
		t.Skip("Docker is not available, skipping integration test.")
	}
	suite.Run(t, new(PageRepositoryIntegrationTestSuite))
}
