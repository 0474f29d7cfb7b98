package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"lectoria/internal/db"
)

type SeoHandler struct {
	seo      *db.SeoRepository
	sections *db.SectionRepository
	lectures *db.LectureRepository
	baseURL  string
	siteName string
}

func NewSeoHandler(database *db.DB, baseURL, siteName string) *SeoHandler {
	return &SeoHandler{
		seo:      db.NewSeoRepository(database),
		sections: db.NewSectionRepository(database),
		lectures: db.NewLectureRepository(database),
		baseURL:  strings.TrimRight(baseURL, "/"),
		siteName: siteName,
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func (h *SeoHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	settings, err := h.seo.Get(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")

	writeURL := func(loc string, lastmod *time.Time) {
		b.WriteString("  <url>\n")
		fmt.Fprintf(&b, "    <loc>%s</loc>\n", xmlEscaper.Replace(loc))
		if lastmod != nil {
			fmt.Fprintf(&b, "    <lastmod>%s</lastmod>\n", lastmod.UTC().Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "    <changefreq>%s</changefreq>\n", settings.SitemapChangefreq)
		fmt.Fprintf(&b, "    <priority>%.1f</priority>\n", settings.SitemapPriority)
		b.WriteString("  </url>\n")
	}

	if settings.SitemapIncludePages {
		writeURL(h.baseURL+"/", nil)
		writeURL(h.baseURL+"/contacts", nil)
	}

	if settings.SitemapIncludeSections {
		sections, err := h.sections.ListActive(r.Context())
		if err != nil {
			internalError(w)
			return
		}
		for _, s := range sections {
			writeURL(h.baseURL+"/sections/"+s.Slug, lastModified(s.CreatedAt, s.UpdatedAt))
		}
	}

	if settings.SitemapIncludeLectures {
		lectures, err := h.lectures.ListActive(r.Context())
		if err != nil {
			internalError(w)
			return
		}
		for _, l := range lectures {
			writeURL(h.baseURL+"/lectures/"+l.Slug, lastModified(l.CreatedAt, l.UpdatedAt))
		}
	}

	b.WriteString("</urlset>\n")

	if err := h.seo.TouchSitemap(r.Context(), settings.ID); err != nil {
		internalError(w)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(b.String()))
}

func (h *SeoHandler) Robots(w http.ResponseWriter, r *http.Request) {
	settings, err := h.seo.Get(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	body := settings.RobotsTxt
	if body == "" {
		body = "User-agent: *\nDisallow: /admin/\nDisallow: /profile\n"
	}
	if !strings.Contains(body, "Sitemap:") {
		body = strings.TrimRight(body, "\n") + "\n\nSitemap: " + h.baseURL + "/sitemap.xml\n"
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(body))
}

// Feed serves an RSS 2.0 feed of the active lectures.
func (h *SeoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	lectures, err := h.lectures.ListActive(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0">` + "\n<channel>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", xmlEscaper.Replace(h.siteName))
	fmt.Fprintf(&b, "  <link>%s/</link>\n", h.baseURL)
	fmt.Fprintf(&b, "  <description>%s</description>\n", xmlEscaper.Replace(h.siteName+" lectures"))

	for _, l := range lectures {
		b.WriteString("  <item>\n")
		fmt.Fprintf(&b, "    <title>%s</title>\n", xmlEscaper.Replace(l.Title))
		fmt.Fprintf(&b, "    <link>%s/lectures/%s</link>\n", h.baseURL, l.Slug)
		fmt.Fprintf(&b, "    <guid>%s/lectures/%s</guid>\n", h.baseURL, l.Slug)
		if l.Description != "" {
			fmt.Fprintf(&b, "    <description>%s</description>\n", xmlEscaper.Replace(l.Description))
		}
		if m := lastModified(l.CreatedAt, l.UpdatedAt); m != nil {
			fmt.Fprintf(&b, "    <pubDate>%s</pubDate>\n", m.UTC().Format(time.RFC1123Z))
		}
		b.WriteString("  </item>\n")
	}

	b.WriteString("</channel>\n</rss>\n")

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(b.String()))
}

func lastModified(created time.Time, updated *time.Time) *time.Time {
	if updated != nil {
		return updated
	}
	return &created
}
