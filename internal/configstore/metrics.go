package configstore

import "github.com/prometheus/client_golang/prometheus"

var (
	configWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediatheme_config_writes_total",
			Help: "Config write attempts by result (ok, invalid, error).",
		},
		[]string{"result"},
	)
	backupCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediatheme_backups",
			Help: "Number of config backup snapshots on disk.",
		},
	)
)

func init() {
	prometheus.MustRegister(configWrites)
	prometheus.MustRegister(backupCount)
}
