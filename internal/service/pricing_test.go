package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/cache"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

func decimals(values ...string) []decimal.Decimal {
	res := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		res = append(res, decimal.RequireFromString(v))
	}
	return res
}

func assertDecimals(t *testing.T, want, got []decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "point %d: want %s, got %s", i, want[i], got[i])
	}
}

func TestMeanPrice(t *testing.T) {
	mean, ok := meanPrice(decimals("100", "110", "90", "120"))
	require.True(t, ok)
	assert.True(t, mean.Equal(decimal.NewFromInt(105)))

	_, ok = meanPrice(nil)
	assert.False(t, ok)
}

func TestPricePoints(t *testing.T) {
	mean := decimal.NewFromInt(105)

	tests := []struct {
		name string
		r    float64
		want []decimal.Decimal
	}{
		{name: "no jitter", r: 0.5, want: decimals("94.5", "99.75", "105", "110.25", "115.5", "105")},
		{name: "lowest jitter", r: 0, want: decimals("94.5", "99.75", "105", "110.25", "115.5", "94.5")},
		{name: "upper jitter", r: 0.75, want: decimals("94.5", "99.75", "105", "110.25", "115.5", "110.25")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimals(t, tt.want, pricePoints(mean, tt.r))
		})
	}
}

func TestPricePoints_JitterStaysWithinTenPercent(t *testing.T) {
	mean := decimal.NewFromInt(105)
	low, high := decimal.RequireFromString("94.5"), decimal.RequireFromString("115.5")

	for _, r := range []float64{0, 0.1, 0.33, 0.5, 0.9, 0.999999} {
		p := pricePoints(mean, r)[5]
		if p.LessThan(low) || p.GreaterThan(high) {
			t.Fatalf("jitter point %s for r=%v outside [%s, %s]", p, r, low, high)
		}
	}
}

type stubPriceCache struct {
	mean   decimal.Decimal
	hit    bool
	getErr error
	setErr  error
	stored  []decimal.Decimal
	deleted [][2]string
}

func (c *stubPriceCache) GetMean(_ context.Context, _, _ string) (decimal.Decimal, bool, error) {
	return c.mean, c.hit, c.getErr
}

func (c *stubPriceCache) SetMean(_ context.Context, _, _ string, mean decimal.Decimal) error {
	c.stored = append(c.stored, mean)
	return c.setErr
}

func (c *stubPriceCache) DeleteMean(_ context.Context, category, subCategory string) error {
	c.deleted = append(c.deleted, [2]string{category, subCategory})
	return c.setErr
}

func (f *fixture) addPricedProviders(t *testing.T) {
	t.Helper()
	// В оценке участвуют и неактивные магазины.
	f.addProvider(t, "B", deepCleaning("110"), true, true)
	f.addProvider(t, "C", deepCleaning("90"), false, true)
	f.addProvider(t, "D", deepCleaning("120"), true, false)
}

func TestEstimatePrice(t *testing.T) {
	f := newFixture(t)
	f.addPricedProviders(t)
	stub := &stubPriceCache{}
	f.svc.SetPriceCache(stub)

	est, err := f.svc.EstimatePrice(context.Background(), "cleaning", "deep")
	require.NoError(t, err)
	assert.True(t, est.Mean.Equal(decimal.NewFromInt(105)))
	assertDecimals(t, decimals("94.5", "99.75", "105", "110.25", "115.5", "105"), est.Points)

	require.Len(t, stub.stored, 1)
	assert.True(t, stub.stored[0].Equal(decimal.NewFromInt(105)))
}

func TestEstimatePrice_UsesCachedMean(t *testing.T) {
	f := newFixture(t)
	stub := &stubPriceCache{mean: decimal.NewFromInt(200), hit: true}
	f.svc.SetPriceCache(stub)

	est, err := f.svc.EstimatePrice(context.Background(), "cleaning", "deep")
	require.NoError(t, err)
	assert.True(t, est.Mean.Equal(decimal.NewFromInt(200)))
	assert.Empty(t, stub.stored)
}

func TestEstimatePrice_CacheFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.addPricedProviders(t)
	f.svc.SetPriceCache(&stubPriceCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")})

	est, err := f.svc.EstimatePrice(context.Background(), "cleaning", "deep")
	require.NoError(t, err)
	assert.True(t, est.Mean.Equal(decimal.NewFromInt(105)))
}

func TestEstimatePrice_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EstimatePrice(context.Background(), "cleaning", "windows")
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.EstimatePrice(context.Background(), "", "deep")
	requireKind(t, err, apperr.KindInvalidArgument)
}

func TestUpdateCatalog_InvalidatesCachedPrices(t *testing.T) {
	f := newFixture(t)
	stub := &stubPriceCache{}
	f.svc.SetPriceCache(stub)

	_, err := f.svc.UpdateCatalog(context.Background(), f.owner, []model.ServiceOffering{
		{Category: "cleaning", SubCategory: model.SubCategory{Name: "deep", Price: decimal.NewFromInt(120)}},
		{Category: "plumbing", SubCategory: model.SubCategory{Name: "leak", Price: decimal.NewFromInt(800)}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, [][2]string{{"cleaning", "deep"}, {"plumbing", "leak"}}, stub.deleted)
}

func TestEstimatePrice_RedisCacheFollowsCatalog(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	pc := cache.NewPriceCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	t.Cleanup(func() { _ = pc.Close() })
	f.svc.SetPriceCache(pc)
	ctx := context.Background()

	est, err := f.svc.EstimatePrice(ctx, "cleaning", "deep")
	require.NoError(t, err)
	assert.True(t, est.Mean.Equal(decimal.NewFromInt(100)))

	// Каталог сопоставляется с учётом регистра, кеш тоже.
	_, err = f.svc.EstimatePrice(ctx, "Cleaning", "Deep")
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.UpdateCatalog(ctx, f.owner, []model.ServiceOffering{
		{Category: "plumbing", SubCategory: model.SubCategory{Name: "leak", Price: decimal.NewFromInt(800)}},
	})
	require.NoError(t, err)

	_, err = f.svc.EstimatePrice(ctx, "cleaning", "deep")
	requireKind(t, err, apperr.KindNotFound)

	f.addProvider(t, "Fresh", deepCleaning("140"), true, true)
	est, err = f.svc.EstimatePrice(ctx, "cleaning", "deep")
	require.NoError(t, err)
	assert.True(t, est.Mean.Equal(decimal.NewFromInt(140)))
}
