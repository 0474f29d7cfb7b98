package models

import "time"

type MenuItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"url,omitempty"`
	Position int     `json:"position"`
	IsActive bool    `json:"isActive"`
	ParentID *string `json:"parentId,omitempty"`
}

type HomeBlock struct {
	ID         string  `json:"id"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content,omitempty"`
	Image      *string `json:"image,omitempty"`
	ButtonText string  `json:"buttonText,omitempty"`
	ButtonURL  string  `json:"buttonUrl,omitempty"`
	Position   int     `json:"position"`
	BlockType  string  `json:"blockType"`
	Template   string  `json:"template,omitempty"`
	Slug       string  `json:"slug,omitempty"`
	IsActive   bool    `json:"isActive"`
}

// SeoSettings is a single-row table driving sitemap.xml and robots.txt.
type SeoSettings struct {
	ID                     string     `json:"id"`
	RobotsTxt              string     `json:"robotsTxt,omitempty"`
	SitemapIncludeLectures bool       `json:"sitemapIncludeLectures"`
	SitemapIncludeSections bool       `json:"sitemapIncludeSections"`
	SitemapIncludePages    bool       `json:"sitemapIncludePages"`
	SitemapChangefreq      string     `json:"sitemapChangefreq"`
	SitemapPriority        float64    `json:"sitemapPriority"`
	SitemapLastUpdated     *time.Time `json:"sitemapLastUpdated,omitempty"`
}
