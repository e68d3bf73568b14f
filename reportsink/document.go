// Package reportsink publishes flushed lazy-load reports outside the process.
// RabbitMQ serves alerting consumers, MongoDB keeps history for trend queries
// across deployments, and a capped Redis stream holds the most recent flushes.
package reportsink

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-lazyload/lazyload"
)

// Document is the wire and storage form of one report.
type Document struct {
	ID        string         `json:"id" bson:"_id"`
	Service   string         `json:"service" bson:"service"`
	FlushedAt time.Time      `json:"flushed_at" bson:"flushed_at"`
	Locations int            `json:"locations" bson:"locations"`
	LazyLoads int            `json:"lazy_loads" bson:"lazy_loads"`
	TotalMs   int64          `json:"total_ms" bson:"total_ms"`
	Sites     []SiteDocument `json:"sites" bson:"sites"`
}

// SiteDocument is one call site of a Document.
type SiteDocument struct {
	Location string `json:"location" bson:"location"`
	Count    int    `json:"count" bson:"count"`
	TotalMs  int64  `json:"total_ms" bson:"total_ms"`
	AvgMs    int64  `json:"avg_ms" bson:"avg_ms"`
}

// NewDocument converts report, keeping its site order.
func NewDocument(service string, report lazyload.Report, flushedAt time.Time) Document {
	doc := Document{
		ID:        uuid.NewString(),
		Service:   service,
		FlushedAt: flushedAt.UTC(),
		Locations: len(report.Sites),
		LazyLoads: report.Loads,
		TotalMs:   report.TotalMs,
		Sites:     make([]SiteDocument, 0, len(report.Sites)),
	}
	for _, s := range report.Sites {
		doc.Sites = append(doc.Sites, SiteDocument{
			Location: s.Location,
			Count:    s.Count(),
			TotalMs:  s.Total(),
			AvgMs:    s.Average(),
		})
	}
	return doc
}
