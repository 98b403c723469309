package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pumpbridge_webhook_batches_total",
		Help: "Webhook deliveries by outcome.",
	}, []string{"result"})

	pumpCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pumpbridge_pump_commands_total",
		Help: "Pump commands issued upstream by command and result.",
	}, []string{"command", "result"})

	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pumpbridge_token_refreshes_total",
		Help: "OAuth token refresh attempts by result.",
	}, []string{"result"})
)
