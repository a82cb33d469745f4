package controller

import "github.com/prometheus/client_golang/prometheus"

var themeApplies = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mediatheme_theme_applies_total",
		Help: "Theme apply attempts by theme and result (ok, unknown, css_unavailable).",
	},
	[]string{"theme", "result"},
)

func init() {
	prometheus.MustRegister(themeApplies)
}
