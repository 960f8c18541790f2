package models

import "strings"

// KPI names one of the production ratio indicators.
type KPI string

const (
	KPIOEE          KPI = "OEE"
	KPIPerformance  KPI = "Performance"
	KPIAvailability KPI = "Availability"
	KPIQuality      KPI = "Quality"
)

// KPIs is the display order of the indicators.
var KPIs = []KPI{KPIOEE, KPIPerformance, KPIAvailability, KPIQuality}

// DefaultGoals are the target ratios drawn on gauges and trend charts.
var DefaultGoals = map[KPI]float64{
	KPIOEE:          0.85,
	KPIPerformance:  0.90,
	KPIAvailability: 0.95,
	KPIQuality:      0.98,
}

func (k KPI) Color() string {
	switch k {
	case KPIOEE:
		return "#636EFA"
	case KPIPerformance:
		return "#EF553B"
	case KPIAvailability:
		return "#00CC96"
	case KPIQuality:
		return "#AB63FA"
	}
	return "#888888"
}

func ParseKPI(raw string) (KPI, bool) {
	raw = strings.TrimSpace(raw)
	for _, k := range KPIs {
		if strings.EqualFold(raw, string(k)) {
			return k, true
		}
	}
	return "", false
}
