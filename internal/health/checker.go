package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/steadfast-labs/coverdocs/internal/database"
	"github.com/steadfast-labs/coverdocs/internal/elastic"
)

// ServiceHealth is the probe result for one dependency.
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth is the aggregate the /api/health endpoint serves. The
// overall status mirrors the upstream search cluster: green maps to
// healthy, yellow to degraded, red or unreachable to unhealthy.
type OverallHealth struct {
	Status   string            `json:"status"`
	Cluster  map[string]string `json:"cluster,omitempty"`
	Services []ServiceHealth   `json:"services"`
}

type Checker struct {
	search    *elastic.Client
	dbManager *database.Manager
	logger    *logrus.Logger
}

func NewChecker(search *elastic.Client, dbManager *database.Manager, logger *logrus.Logger) *Checker {
	return &Checker{
		search:    search,
		dbManager: dbManager,
		logger:    logger,
	}
}

// CheckSearchBackend probes the search cluster health endpoint.
func (c *Checker) CheckSearchBackend(ctx context.Context) (ServiceHealth, *elastic.ClusterHealth) {
	start := time.Now()
	cluster, err := c.search.ClusterHealth(ctx)
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		c.logger.WithError(err).Error("Search backend health check failed")
	} else if cluster.Status == "yellow" {
		status = "degraded"
	} else if cluster.Status == "red" {
		status = "unhealthy"
	}

	return ServiceHealth{
		Name:         "search",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}, cluster
}

// CheckRedis probes the cache connection.
func (c *Checker) CheckRedis() ServiceHealth {
	start := time.Now()
	err := c.dbManager.PingRedis()
	responseTime := int(time.Since(start).Milliseconds())

	status := "healthy"
	errorMsg := ""
	if err != nil {
		status = "unhealthy"
		errorMsg = err.Error()
		c.logger.WithError(err).Error("Redis health check failed")
	}

	return ServiceHealth{
		Name:         "redis",
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// Overall combines the dependency probes. The search backend dictates
// the top-level status; a degraded cache only degrades, never fails,
// because every request path works without it.
func (c *Checker) Overall(ctx context.Context) OverallHealth {
	searchHealth, cluster := c.CheckSearchBackend(ctx)
	services := []ServiceHealth{searchHealth}

	status := searchHealth.Status

	if c.dbManager != nil {
		redisHealth := c.CheckRedis()
		services = append(services, redisHealth)
		if redisHealth.Status != "healthy" && status == "healthy" {
			status = "degraded"
		}
	}

	overall := OverallHealth{
		Status:   status,
		Services: services,
	}
	if cluster != nil {
		overall.Cluster = map[string]string{
			"name":   cluster.ClusterName,
			"status": cluster.Status,
		}
	}
	return overall
}
