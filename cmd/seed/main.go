package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/config"
	"github.com/steadfast-labs/coverdocs/internal/database"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
	"github.com/steadfast-labs/coverdocs/pkg/utils"
)

// PageConfig names one document page to crawl into the corpus.
type PageConfig struct {
	Title       string
	URL         string
	Author      string
	ContentType string
}

// CorpusSeeder crawls configured pages and indexes them as searchable
// documents.
type CorpusSeeder struct {
	collector *colly.Collector
	client    *elastic.Client
	index     string
	logger    *logrus.Logger
	errors    []error
}

var (
	// Seed corpus: public insurance guidance pages. Replace with the
	// real document source in deployment.
	seedPages = []PageConfig{
		{Title: "Flood insurance basics", URL: "https://www.fema.gov/flood-insurance", Author: "FEMA", ContentType: "html"},
		{Title: "Homeowners policy overview", URL: "https://www.iii.org/article/homeowners-insurance-basics", Author: "III", ContentType: "html"},
		{Title: "Water damage coverage", URL: "https://www.iii.org/article/water-damage", Author: "III", ContentType: "html"},
		{Title: "Filing a claim", URL: "https://www.iii.org/article/how-file-flood-insurance-claim", Author: "III", ContentType: "html"},
	}

	whitespacePattern = regexp.MustCompile(`\s+`)

	dryRun  = flag.Bool("dry-run", false, "Don't index documents, just print what would be indexed")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	limit   = flag.Int("limit", 0, "Limit number of pages to process (0 = all)")
	delay   = flag.Duration("delay", 2*time.Second, "Delay between requests")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting corpus seeder...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	var client *elastic.Client
	if !*dryRun {
		if err := cfg.ValidateSearch(); err != nil {
			logger.WithError(err).Fatal("Search backend configuration validation failed")
		}
		client = elastic.NewClient(cfg.Search.URL, cfg.Search.APIKey, logger)
	}

	seeder := NewCorpusSeeder(client, cfg.Search.Index, logger)

	ctx := context.Background()
	if err := seeder.Seed(ctx); err != nil {
		logger.WithError(err).Fatal("Corpus seeding failed")
	}

	// Freshly indexed documents change the facet counts, so drop the
	// cached aggregation.
	if !*dryRun && cfg.Redis.URL != "" {
		invalidateFacetsCache(ctx, cfg.Redis.URL, logger)
	}

	logger.Info("Corpus seeding completed")
}

func invalidateFacetsCache(ctx context.Context, redisURL string, logger *logrus.Logger) {
	manager, err := database.NewManager(redisURL, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, facets cache not invalidated")
		return
	}
	defer manager.Close()

	if err := database.NewCache(manager.Redis, logger).InvalidateFacets(ctx); err != nil {
		logger.WithError(err).Warn("Failed to invalidate facets cache")
	}
}

func NewCorpusSeeder(client *elastic.Client, index string, logger *logrus.Logger) *CorpusSeeder {
	c := colly.NewCollector(
		colly.UserAgent("coverdocs-seeder/1.0"),
	)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       *delay,
	})
	c.SetRequestTimeout(30 * time.Second)

	return &CorpusSeeder{
		collector: c,
		client:    client,
		index:     index,
		logger:    logger,
	}
}

func (cs *CorpusSeeder) Seed(ctx context.Context) error {
	pages := seedPages
	if *limit > 0 && *limit < len(pages) {
		pages = pages[:*limit]
	}

	cs.logger.WithField("total_pages", len(pages)).Info("Processing pages")

	for i, page := range pages {
		cs.logger.WithFields(logrus.Fields{
			"page":     page.Title,
			"progress": fmt.Sprintf("%d/%d", i+1, len(pages)),
		}).Info("Processing page")

		if err := cs.processPage(ctx, page); err != nil {
			cs.logger.WithError(err).WithField("page", page.Title).Error("Failed to process page")
			cs.errors = append(cs.errors, fmt.Errorf("failed to process %s: %w", page.Title, err))
			continue
		}
	}

	cs.logger.WithFields(logrus.Fields{
		"processed": len(pages) - len(cs.errors),
		"errors":    len(cs.errors),
	}).Info("Seeding finished")

	if len(cs.errors) == len(pages) && len(pages) > 0 {
		return fmt.Errorf("all %d pages failed", len(pages))
	}
	return nil
}

func (cs *CorpusSeeder) processPage(ctx context.Context, page PageConfig) error {
	var content string
	var creatorTool string
	var processingError error

	// Clone so per-page callbacks don't pile up on the shared collector.
	collector := cs.collector.Clone()
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		content = extractText(e.DOM)
		if generator, exists := e.DOM.Find(`meta[name="generator"]`).Attr("content"); exists {
			creatorTool = generator
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		processingError = err
	})

	if err := collector.Visit(page.URL); err != nil {
		return fmt.Errorf("failed to visit page: %w", err)
	}
	if processingError != nil {
		return processingError
	}
	if content == "" {
		return fmt.Errorf("no content extracted")
	}

	doc := map[string]interface{}{
		"title":        page.Title,
		"content":      content,
		"url":          page.URL,
		"author":       page.Author,
		"content_type": page.ContentType,
		"creator_tool": creatorTool,
		"indexed_at":   time.Now().UTC().Format(time.RFC3339),
	}

	if *dryRun {
		cs.logger.WithFields(logrus.Fields{
			"page":           page.Title,
			"content_length": len(content),
			"creator_tool":   creatorTool,
		}).Info("DRY RUN: Would index document")
		return nil
	}

	return cs.client.Index(ctx, cs.index, doc)
}

// extractText pulls the readable body text out of a page, dropping
// navigation and script noise.
func extractText(doc *goquery.Selection) string {
	body := doc.Find("body").Clone()
	body.Find("nav, header, footer, script, style, noscript, aside").Remove()

	text := strings.TrimSpace(body.Text())
	return whitespacePattern.ReplaceAllString(text, " ")
}
