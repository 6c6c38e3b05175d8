package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticket-resale/models"
)

var (
	chatsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chats_created_total",
			Help: "Total negotiation chats created",
		},
	)

	negotiationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_actions_total",
			Help: "Total negotiation actions by outcome",
		},
		[]string{"action", "result"},
	)

	chatsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chats_by_status",
			Help: "Current number of chats per status",
		},
		[]string{"status"},
	)

	settlements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total completed settlements",
		},
	)

	settlementQRDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_qr_duration_seconds",
			Help:    "Duration of bank QR generation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func TrackChatCreated() {
	chatsCreated.Inc()
}

func TrackAction(action, result string) {
	negotiationActions.WithLabelValues(action, result).Inc()
}

func TrackSettlement() {
	settlements.Inc()
}

func TrackSettlementQR(duration time.Duration) {
	settlementQRDuration.Observe(duration.Seconds())
}

// ChatCounter is the slice of the chat store the collector needs.
type ChatCounter interface {
	CountByStatus(ctx context.Context) (map[models.ChatStatus]int, error)
}

type Monitor struct {
	chats ChatCounter
}

func NewMonitor(chats ChatCounter) *Monitor {
	monitor := &Monitor{chats: chats}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.collectChatMetrics(ctx)
		cancel()
	}
}

func (m *Monitor) collectChatMetrics(ctx context.Context) {
	counts, err := m.chats.CountByStatus(ctx)
	if err != nil {
		return
	}

	for _, status := range []models.ChatStatus{
		models.ChatActive,
		models.ChatAccepted,
		models.ChatRejected,
		models.ChatCompleted,
	} {
		chatsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// Serve exposes /metrics on its own listener, away from the API port.
func Serve(port string) error {
	e := echo.New()

	e.GET("/metrics", func(c echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}
	return server.ListenAndServe()
}
