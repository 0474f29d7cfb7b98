package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lectoria/internal/models"
)

// SeoRepository manages the single seo_settings row seeded at migration time.
type SeoRepository struct {
	db *DB
}

func NewSeoRepository(db *DB) *SeoRepository {
	return &SeoRepository{db: db}
}

func (r *SeoRepository) Get(ctx context.Context) (*models.SeoSettings, error) {
	var s models.SeoSettings
	var lastUpdated sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, robots_txt, sitemap_include_lectures, sitemap_include_sections, sitemap_include_pages,
		    sitemap_changefreq, sitemap_priority, sitemap_last_updated
		   FROM seo_settings LIMIT 1`,
	).Scan(&s.ID, &s.RobotsTxt, &s.SitemapIncludeLectures, &s.SitemapIncludeSections, &s.SitemapIncludePages,
		&s.SitemapChangefreq, &s.SitemapPriority, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying seo settings: %w", err)
	}

	s.SitemapLastUpdated = nullTimeToPtr(lastUpdated)
	return &s, nil
}

type SeoParams struct {
	RobotsTxt              string
	SitemapIncludeLectures bool
	SitemapIncludeSections bool
	SitemapIncludePages    bool
	SitemapChangefreq      string
	SitemapPriority        float64
}

func (r *SeoRepository) Update(ctx context.Context, id string, p SeoParams) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE seo_settings SET robots_txt = ?, sitemap_include_lectures = ?, sitemap_include_sections = ?,
		    sitemap_include_pages = ?, sitemap_changefreq = ?, sitemap_priority = ?
		  WHERE id = ?`,
		p.RobotsTxt, p.SitemapIncludeLectures, p.SitemapIncludeSections,
		p.SitemapIncludePages, p.SitemapChangefreq, p.SitemapPriority, id,
	)
	if err != nil {
		return fmt.Errorf("updating seo settings: %w", err)
	}
	return checkRowsAffected(result)
}

// TouchSitemap records when the sitemap was last generated.
func (r *SeoRepository) TouchSitemap(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE seo_settings SET sitemap_last_updated = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touching sitemap timestamp: %w", err)
	}
	return nil
}
