package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

func TestFilterEligible(t *testing.T) {
	offers := deepCleaning("100")
	providers := []model.Provider{
		{ID: "live-verified", IsLive: true, IsVerified: true, ServicesOffered: offers},
		{ID: "offline", IsLive: false, IsVerified: true, ServicesOffered: offers},
		{ID: "unverified", IsLive: true, IsVerified: false, ServicesOffered: offers},
		{ID: "other-service", IsLive: true, IsVerified: true, ServicesOffered: []model.ServiceOffering{
			{Category: "cleaning", SubCategory: model.SubCategory{Name: "sofa"}},
		}},
		{ID: "second", IsLive: true, IsVerified: true, ServicesOffered: offers},
	}

	got := filterEligible(providers, "cleaning", "deep")

	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"live-verified", "second"}, ids)
}

func TestMatchProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addProvider(t, "Offline", deepCleaning("90"), false, true)
	f.addProvider(t, "Unverified", deepCleaning("90"), true, false)
	_, second := f.addProvider(t, "Second", deepCleaning("120"), true, true)

	got, err := f.svc.MatchProviders(ctx, MatchQuery{Category: "cleaning", SubCategory: "deep"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, f.provider.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestMatchProviders_NoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.MatchProviders(context.Background(), MatchQuery{Category: "cleaning", SubCategory: "windows"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchProviders_RequiresCategory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.MatchProviders(context.Background(), MatchQuery{Category: "cleaning"})
	requireKind(t, err, apperr.KindInvalidArgument)
}

func TestDistanceKm(t *testing.T) {
	origin := model.Location{Coordinates: []float64{0, 0}}

	assert.InDelta(t, 111.19, distanceKm(origin, model.Location{Coordinates: []float64{0, 1}}), 0.01)
	assert.InDelta(t, 0, distanceKm(origin, origin), 1e-9)
	assert.Zero(t, distanceKm(origin, model.Location{}))
}
