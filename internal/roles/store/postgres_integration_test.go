//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rolesync/internal/roles/models"
	"rolesync/internal/roles/store"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/sentinel"
	"rolesync/pkg/testutil/containers"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresRoleStore
}

func TestPostgresIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "roles"))
}

func (s *PostgresIntegrationSuite) newRole(acct id.AccountID, rt models.RoleType) *models.Role {
	attrs, err := models.DefaultAttributes(rt, models.Profile{DisplayName: "Ada", Email: "ada@example.com"})
	s.Require().NoError(err)
	r, err := models.NewVerifiedRole(id.NewRoleID(), acct, rt, attrs,
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return r
}

// Concurrent inserts of the same (account, role_type) must leave one row.
func (s *PostgresIntegrationSuite) TestConcurrentDuplicateInsertConflicts() {
	ctx := context.Background()
	acct := id.NewAccountID()
	const goroutines = 20

	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, s.newRole(acct, models.RoleTypeIndividual))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresIntegrationSuite) TestRoleDataRoundTrip() {
	ctx := context.Background()
	acct := id.NewAccountID()
	r := s.newRole(acct, models.RoleTypeServiceProvider)
	s.Require().NoError(s.store.Insert(ctx, r))

	pid := id.NewPropertyID()
	data := r.Data.Clone()
	data.UpsertAssociation(models.PropertyAssociation{
		RoleID:         r.ID,
		PropertyID:     pid,
		SourceRoleID:   id.NewRoleID(),
		SourceRoleType: models.RoleTypeIndividual,
		LastUpdated:    time.Now().UTC().Truncate(time.Microsecond),
	})
	n, err := s.store.Update(ctx, models.Filter{ID: r.ID}, models.Patch{Data: &data})
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.store.Select(ctx, models.Filter{AccountID: acct})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(models.RoleTypeServiceProvider, got[0].RoleType)
	s.IsType(models.ServiceProviderAttributes{}, got[0].Data.Attributes)
	_, ok := got[0].Data.Association(pid)
	s.True(ok)
	s.Equal(r.Version+1, got[0].Version)

	n, err = s.store.Update(ctx, models.Filter{ID: r.ID, Version: r.Version}, models.Patch{IsActive: models.Bool(false)})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresIntegrationSuite) TestDeleteByBatchRemovesOnlyTaggedRows() {
	ctx := context.Background()
	acct := id.NewAccountID()
	batch := id.NewBatchID()

	tagged := s.newRole(acct, models.RoleTypeIndividual)
	tagged.BatchID = batch
	untagged := s.newRole(acct, models.RoleTypeCommunityMember)
	s.Require().NoError(s.store.Insert(ctx, tagged))
	s.Require().NoError(s.store.Insert(ctx, untagged))

	n, err := s.store.Delete(ctx, models.Filter{AccountID: acct, BatchID: batch})
	s.Require().NoError(err)
	s.Equal(1, n)

	left, err := s.store.Select(ctx, models.Filter{AccountID: acct})
	s.Require().NoError(err)
	s.Require().Len(left, 1)
	s.Equal(untagged.ID, left[0].ID)
}

func (s *PostgresIntegrationSuite) TestConditionalActivationUpdate() {
	ctx := context.Background()
	acct := id.NewAccountID()
	r := s.newRole(acct, models.RoleTypeIndividual)
	s.Require().NoError(s.store.Insert(ctx, r))

	n, err := s.store.Update(ctx,
		models.Filter{AccountID: acct, Active: models.Bool(true)},
		models.Patch{IsActive: models.Bool(false)})
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.store.Update(ctx,
		models.Filter{ID: r.ID, Verified: models.Bool(true)},
		models.Patch{IsActive: models.Bool(true)})
	s.Require().NoError(err)
	s.Equal(1, n)
}
