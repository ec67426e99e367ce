package repository

import (
	"context"

	"hostelgate/internal/models"
	"hostelgate/internal/search"
)

// GuestSearchRepository resolves admin free-text queries through the
// search index; rows are then loaded from Postgres by id.
type GuestSearchRepository struct {
	es *search.ElasticsearchClient
}

func NewGuestSearchRepository(es *search.ElasticsearchClient) *GuestSearchRepository {
	return &GuestSearchRepository{es: es}
}

func (r *GuestSearchRepository) SearchIDs(ctx context.Context, filter models.GuestFilter) ([]int64, error) {
	return r.es.SearchGuestIDs(ctx, filter.Query, filter.Offset, filter.Limit)
}

func (r *GuestSearchRepository) Index(ctx context.Context, g *models.GuestRecord) error {
	return r.es.IndexGuest(ctx, search.NewGuestDocument(g))
}

func (r *GuestSearchRepository) Delete(ctx context.Context, id int64) error {
	return r.es.DeleteGuest(ctx, id)
}
