package service

import (
	"context"
	"math"
	"strings"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// MatchQuery описывает запрос клиента на подбор магазинов.
type MatchQuery struct {
	Category    string
	SubCategory string
	Location    model.Location
}

// MatchProviders возвращает активные верифицированные магазины, предлагающие услугу.
// Пустой результат ошибкой не считается.
func (s *Service) MatchProviders(ctx context.Context, q MatchQuery) ([]model.Provider, error) {
	if strings.TrimSpace(q.Category) == "" || strings.TrimSpace(q.SubCategory) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "category and sub-category are required")
	}

	providers, err := s.repo.ListProviders(ctx, true)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	return filterEligible(providers, q.Category, q.SubCategory), nil
}

// filterEligible оставляет магазины, которые могут выполнить услугу, сохраняя исходный порядок.
func filterEligible(providers []model.Provider, category, subCategory string) []model.Provider {
	res := make([]model.Provider, 0, len(providers))
	for i := range providers {
		p := &providers[i]
		if !p.IsLive || !p.IsVerified {
			continue
		}
		if _, ok := p.Offering(category, subCategory); !ok {
			continue
		}
		res = append(res, *p)
	}
	return res
}

const earthRadiusKm = 6371.0

// distanceKm возвращает расстояние по большому кругу между точками [долгота, широта].
// Если хотя бы одна точка не задана, расстояние считается нулевым.
func distanceKm(a, b model.Location) float64 {
	if !a.HasPoint() || !b.HasPoint() {
		return 0
	}

	lon1, lat1 := toRadians(a.Coordinates[0]), toRadians(a.Coordinates[1])
	lon2, lat2 := toRadians(b.Coordinates[0]), toRadians(b.Coordinates[1])

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
