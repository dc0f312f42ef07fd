package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/catchlog/internal/model"
)

const scrapeTimeout = 5 * time.Second

// catchCollector reports catch counts by asking storage on every scrape, so
// the numbers are never stale.
type catchCollector struct {
	stats  StatsFunc
	logger *slog.Logger
	desc   *prometheus.Desc
}

func newCatchCollector(stats StatsFunc, logger *slog.Logger) *catchCollector {
	return &catchCollector{
		stats:  stats,
		logger: logger,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "catches"),
			"Number of stored catches by type",
			[]string{"catch_type"}, nil,
		),
	}
}

func (c *catchCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *catchCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	stats, err := c.stats(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to collect catch counts", slog.String("error", err.Error()))
		}
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(stats.Hunting), string(model.CatchTypeHunting))
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(stats.Fishing), string(model.CatchTypeFishing))
}
