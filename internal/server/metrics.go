package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ws "cad-realtime/internal/websocket"
)

// hubCollector exposes hub statistics as Prometheus metrics
type hubCollector struct {
	hub *ws.Hub

	activeConnections *prometheus.Desc
	activeChannels    *prometheus.Desc
	messagesReceived  *prometheus.Desc
	messagesSent      *prometheus.Desc
	messagesFailed    *prometheus.Desc
}

func newHubCollector(hub *ws.Hub) *hubCollector {
	return &hubCollector{
		hub: hub,
		activeConnections: prometheus.NewDesc(
			"feedhub_active_connections",
			"Number of active WebSocket connections",
			nil, nil,
		),
		activeChannels: prometheus.NewDesc(
			"feedhub_active_channels",
			"Number of channels with at least one subscriber",
			nil, nil,
		),
		messagesReceived: prometheus.NewDesc(
			"feedhub_messages_received_total",
			"Messages received from Redis for broadcast",
			nil, nil,
		),
		messagesSent: prometheus.NewDesc(
			"feedhub_messages_sent_total",
			"Messages delivered to subscriber connections",
			nil, nil,
		),
		messagesFailed: prometheus.NewDesc(
			"feedhub_messages_failed_total",
			"Messages dropped due to full buffers or encode failures",
			nil, nil,
		),
	}
}

func (c *hubCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeConnections
	ch <- c.activeChannels
	ch <- c.messagesReceived
	ch <- c.messagesSent
	ch <- c.messagesFailed
}

func (c *hubCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.hub.GetStats()

	ch <- prometheus.MustNewConstMetric(c.activeConnections, prometheus.GaugeValue, float64(stats.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.activeChannels, prometheus.GaugeValue, float64(stats.ActiveChannels))
	ch <- prometheus.MustNewConstMetric(c.messagesReceived, prometheus.CounterValue, float64(stats.TotalMessagesReceived))
	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(stats.TotalMessagesSent))
	ch <- prometheus.MustNewConstMetric(c.messagesFailed, prometheus.CounterValue, float64(stats.TotalMessagesFailed))
}

// metricsHandler serves the Prometheus metrics endpoint
func metricsHandler(hub *ws.Hub) gin.HandlerFunc {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newHubCollector(hub))

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(handler)
}
