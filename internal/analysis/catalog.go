package analysis

import (
	"context"
	"strings"

	"marketlens/internal/model"
)

func (svc *Service) requireCatalog() (model.Catalog, error) {
	if svc.catalog == nil {
		return nil, model.NotFoundf("catalog")
	}
	return svc.catalog, nil
}

// Search returns catalog entries matching q. An empty query returns no rows.
func (svc *Service) Search(ctx context.Context, q string, limit int) ([]model.StockInfo, error) {
	c, err := svc.requireCatalog()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q) == "" {
		return []model.StockInfo{}, nil
	}
	out, err := c.Search(ctx, q, limit)
	return out, model.Upstream("search", err)
}

func (svc *Service) ByCategory(ctx context.Context, category string) ([]model.StockInfo, error) {
	c, err := svc.requireCatalog()
	if err != nil {
		return nil, err
	}
	out, err := c.ByCategory(ctx, category)
	return out, model.Upstream("companies by category", err)
}

func (svc *Service) AllStocks(ctx context.Context) ([]model.StockInfo, error) {
	c, err := svc.requireCatalog()
	if err != nil {
		return nil, err
	}
	out, err := c.AllStocks(ctx)
	return out, model.Upstream("all stocks", err)
}

func (svc *Service) Categories(ctx context.Context) ([]string, error) {
	c, err := svc.requireCatalog()
	if err != nil {
		return nil, err
	}
	out, err := c.Categories(ctx)
	return out, model.Upstream("categories", err)
}
