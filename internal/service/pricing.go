package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// PriceEstimate содержит ориентировочный диапазон цен подкатегории.
type PriceEstimate struct {
	Category    string            `json:"category"`
	SubCategory string            `json:"subCategory"`
	Mean        decimal.Decimal   `json:"mean"`
	Points      []decimal.Decimal `json:"points"`
}

var (
	fivePercent = decimal.NewFromFloat(0.05)
	tenPercent  = decimal.NewFromFloat(0.10)
)

// meanPrice возвращает среднее арифметическое цен. Для пустого списка ok == false.
func meanPrice(prices []decimal.Decimal) (decimal.Decimal, bool) {
	if len(prices) == 0 {
		return decimal.Zero, false
	}
	return decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices)))), true
}

// pricePoints строит шесть точек вокруг средней цены: -10%, -5%, среднее, +5%, +10%
// и случайное отклонение в пределах 10%. r лежит в [0, 1).
func pricePoints(mean decimal.Decimal, r float64) []decimal.Decimal {
	jitter := decimal.NewFromFloat(r*2 - 1).Mul(tenPercent)
	one := decimal.NewFromInt(1)

	factors := []decimal.Decimal{
		one.Sub(tenPercent),
		one.Sub(fivePercent),
		one,
		one.Add(fivePercent),
		one.Add(tenPercent),
		one.Add(jitter),
	}

	points := make([]decimal.Decimal, 0, len(factors))
	for _, f := range factors {
		points = append(points, mean.Mul(f).Round(2))
	}
	return points
}

// EstimatePrice оценивает цену подкатегории по каталогам всех магазинов.
func (s *Service) EstimatePrice(ctx context.Context, category, subCategory string) (*PriceEstimate, error) {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(subCategory) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "category and sub-category are required")
	}

	mean, ok := s.cachedMean(ctx, category, subCategory)
	if !ok {
		providers, err := s.repo.ListProviders(ctx, false)
		if err != nil {
			return nil, mapRepoErr(err)
		}

		var prices []decimal.Decimal
		for i := range providers {
			if offering, found := providers[i].Offering(category, subCategory); found {
				prices = append(prices, offering.SubCategory.Price)
			}
		}

		mean, ok = meanPrice(prices)
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "no prices for %s/%s", category, subCategory)
		}

		if s.cache != nil {
			if err := s.cache.SetMean(ctx, category, subCategory, mean); err != nil {
				s.logger.Warn("failed to cache mean price", zap.String("category", category), zap.String("sub_category", subCategory), zap.Error(err))
			}
		}
	}

	return &PriceEstimate{
		Category:    category,
		SubCategory: subCategory,
		Mean:        mean.Round(2),
		Points:      pricePoints(mean, s.rand()),
	}, nil
}

func (s *Service) cachedMean(ctx context.Context, category, subCategory string) (decimal.Decimal, bool) {
	if s.cache == nil {
		return decimal.Zero, false
	}
	mean, ok, err := s.cache.GetMean(ctx, category, subCategory)
	if err != nil {
		s.logger.Warn("failed to read cached mean price", zap.String("category", category), zap.String("sub_category", subCategory), zap.Error(err))
		return decimal.Zero, false
	}
	return mean, ok
}

// invalidatePrices сбрасывает закешированные средние цены подкатегорий из переданных каталогов.
// Ошибка кеша не отменяет изменение каталога, она только пишется в лог.
func (s *Service) invalidatePrices(ctx context.Context, catalogs ...[]model.ServiceOffering) {
	if s.cache == nil {
		return
	}

	seen := make(map[[2]string]struct{})
	for _, catalog := range catalogs {
		for _, o := range catalog {
			key := [2]string{o.Category, o.SubCategory.Name}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if err := s.cache.DeleteMean(ctx, o.Category, o.SubCategory.Name); err != nil {
				s.logger.Warn("failed to invalidate mean price",
					zap.String("category", o.Category), zap.String("sub_category", o.SubCategory.Name), zap.Error(err))
			}
		}
	}
}
