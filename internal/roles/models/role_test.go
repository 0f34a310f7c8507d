package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewRole_Invariants(t *testing.T) {
	accountID := id.NewAccountID()
	attrs := IndividualAttributes{FullName: "Ada Lovelace"}

	t.Run("verified role starts inactive with confirmation stamp", func(t *testing.T) {
		r, err := NewVerifiedRole(id.NewRoleID(), accountID, RoleTypeIndividual, attrs, testNow)
		require.NoError(t, err)
		assert.True(t, r.IsVerified)
		assert.False(t, r.IsActive)
		require.NotNil(t, r.VerificationConfirmedAt)
		assert.Equal(t, testNow, *r.VerificationConfirmedAt)
	})

	t.Run("rejects attributes of another role type", func(t *testing.T) {
		_, err := NewVerifiedRole(id.NewRoleID(), accountID, RoleTypeServiceProvider, attrs, testNow)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects nil account", func(t *testing.T) {
		_, err := NewVerifiedRole(id.NewRoleID(), id.AccountID{}, RoleTypeIndividual, attrs, testNow)
		require.Error(t, err)
	})

	t.Run("pending role needs token and future expiry", func(t *testing.T) {
		_, err := NewPendingRole(id.NewRoleID(), accountID, RoleTypeIndividual, attrs, "", testNow.Add(time.Hour), testNow)
		require.Error(t, err)

		_, err = NewPendingRole(id.NewRoleID(), accountID, RoleTypeIndividual, attrs, "digest", testNow, testNow)
		require.Error(t, err)

		r, err := NewPendingRole(id.NewRoleID(), accountID, RoleTypeIndividual, attrs, "digest", testNow.Add(time.Hour), testNow)
		require.NoError(t, err)
		assert.True(t, r.IsPending())
	})
}

func TestRole_VerificationTransitions(t *testing.T) {
	newPending := func() *Role {
		r, err := NewPendingRole(id.NewRoleID(), id.NewAccountID(), RoleTypeCommunityMember,
			CommunityMemberAttributes{FullName: "Grace"}, "digest", testNow.Add(time.Hour), testNow)
		require.NoError(t, err)
		return r
	}

	t.Run("verifies before expiry and clears token", func(t *testing.T) {
		r := newPending()
		require.NoError(t, r.CanVerify(testNow.Add(59*time.Minute)))
		r.ApplyVerification(testNow.Add(59 * time.Minute))
		assert.True(t, r.IsVerified)
		assert.Empty(t, r.VerificationTokenHash)
		assert.Nil(t, r.VerificationExpiresAt)
	})

	t.Run("rejects at or after expiry", func(t *testing.T) {
		r := newPending()
		err := r.CanVerify(testNow.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
	})

	t.Run("unverified role cannot activate", func(t *testing.T) {
		r := newPending()
		assert.True(t, dErrors.HasCode(r.CanActivate(), dErrors.CodeRolesNotVerified))
	})
}

func TestRoleData_TaggedUnionJSON(t *testing.T) {
	propertyID := id.NewPropertyID()
	data := RoleData{
		Attributes: ServiceProviderAttributes{BusinessName: "Fixit", ServiceCategories: []string{"plumbing"}},
	}
	data.UpsertAssociation(PropertyAssociation{PropertyID: propertyID, SourceRoleType: RoleTypeIndividual})
	data.SetSyncMetadata(propertyID, SyncMetadata{LastSyncedAt: testNow})

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"service_provider"`)

	var decoded RoleData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	attrs, ok := decoded.Attributes.(ServiceProviderAttributes)
	require.True(t, ok, "attributes decode to the concrete type named by kind")
	assert.Equal(t, "Fixit", attrs.BusinessName)
	_, found := decoded.Association(propertyID)
	assert.True(t, found)
	assert.Contains(t, decoded.SyncMetadata, propertyID)
}

func TestRoleData_Mutations(t *testing.T) {
	t.Run("upsert replaces same property", func(t *testing.T) {
		var d RoleData
		p := id.NewPropertyID()
		d.UpsertAssociation(PropertyAssociation{PropertyID: p, LastUpdated: testNow})
		d.UpsertAssociation(PropertyAssociation{PropertyID: p, LastUpdated: testNow.Add(time.Hour)})
		require.Len(t, d.PropertyAssociations, 1)
		assert.Equal(t, testNow.Add(time.Hour), d.PropertyAssociations[0].LastUpdated)
	})

	t.Run("remove property is idempotent", func(t *testing.T) {
		var d RoleData
		p := id.NewPropertyID()
		d.UpsertAssociation(PropertyAssociation{PropertyID: p})
		d.SetSyncMetadata(p, SyncMetadata{})
		assert.True(t, d.RemoveProperty(p))
		assert.False(t, d.RemoveProperty(p))
		assert.Empty(t, d.PropertyAssociations)
		assert.Empty(t, d.SyncMetadata)
	})

	t.Run("history keeps newest entries only", func(t *testing.T) {
		var d RoleData
		for i := 0; i < 15; i++ {
			d.AppendHistory(SyncOperation{ID: string(rune('a' + i))}, DefaultSyncHistoryLimit)
		}
		require.Len(t, d.SyncHistory, DefaultSyncHistoryLimit)
		assert.Equal(t, string(rune('a'+5)), d.SyncHistory[0].ID)
		assert.Equal(t, string(rune('a'+14)), d.SyncHistory[9].ID)
	})

	t.Run("clone does not share slices", func(t *testing.T) {
		d := RoleData{Attributes: ServiceProviderAttributes{BusinessName: "x", ServiceCategories: []string{"a"}}}
		d.UpsertAssociation(PropertyAssociation{PropertyID: id.NewPropertyID()})
		c := d.Clone()
		c.PropertyAssociations[0].SourceRoleType = RoleTypeIndividual
		c.Attributes.(ServiceProviderAttributes).ServiceCategories[0] = "b"
		assert.Empty(t, d.PropertyAssociations[0].SourceRoleType)
		assert.Equal(t, "a", d.Attributes.(ServiceProviderAttributes).ServiceCategories[0])
	})
}

func TestDecodeAttributes(t *testing.T) {
	t.Run("decodes into typed record", func(t *testing.T) {
		attrs, err := DecodeAttributes(RoleTypePropertyAdministrator, map[string]any{
			"company_name":   "Acme Estates",
			"portfolio_size": "12",
		})
		require.NoError(t, err)
		admin, ok := attrs.(PropertyAdministratorAttributes)
		require.True(t, ok)
		assert.Equal(t, 12, admin.PortfolioSize)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := DecodeAttributes(RoleTypeIndividual, map[string]any{"full_name": "A", "tax_id": "x"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestDefaultAttributes_DerivesNameFromEmail(t *testing.T) {
	attrs, err := DefaultAttributes(RoleTypeIndividual, Profile{Email: "jane.doe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", attrs.(IndividualAttributes).FullName)
	require.NoError(t, attrs.Validate())
}

func TestParseRoleTypes(t *testing.T) {
	types, err := ParseRoleTypes([]string{"Individual", " service_provider "})
	require.NoError(t, err)
	assert.Equal(t, []RoleType{RoleTypeIndividual, RoleTypeServiceProvider}, types)

	_, err = ParseRoleTypes([]string{"individual", "individual"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerificationToken(t *testing.T) {
	token, digest, err := NewVerificationToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, digest)
	assert.Equal(t, digest, DigestToken(token))
	assert.Len(t, digest, 64)
}
