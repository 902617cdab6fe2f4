package services

import (
	"math"
	"time"

	"ledgerline-backend/internal/models"
)

const (
	// ForecastMinWeeks is the minimum history before a forecast is attempted.
	ForecastMinWeeks = 4

	// ForecastHorizonWeeks is how far ahead the projection runs.
	ForecastHorizonWeeks = 8

	forecastWindowSize = 4
	trendDampening     = 0.9
)

// GenerateForecast projects net cash flow using a moving average with a
// dampened trend adjustment. The returned series contains the historical
// buckets followed by the projected ones; an empty slice means there is not
// enough history.
func GenerateForecast(historical []models.WeeklyCashFlow) []models.ForecastPoint {
	if len(historical) < ForecastMinWeeks {
		return []models.ForecastPoint{}
	}

	netValues := make([]float64, len(historical))
	for i, item := range historical {
		netValues[i] = item.Net
	}

	windowSize := forecastWindowSize
	if len(netValues) < windowSize {
		windowSize = len(netValues)
	}

	movingAverages := make([]float64, 0, len(netValues)-windowSize+1)
	for i := 0; i+windowSize <= len(netValues); i++ {
		movingAverages = append(movingAverages, mean(netValues[i:i+windowSize]))
	}

	trend := 0.0
	if len(movingAverages) >= 2 {
		recentAvg := mean(movingAverages[len(movingAverages)-2:])
		olderAvg := mean(movingAverages[:2])
		trend = (recentAvg - olderAvg) / float64(len(movingAverages))
	}

	series := make([]models.ForecastPoint, 0, len(historical)+ForecastHorizonWeeks)
	for _, item := range historical {
		net := item.Net
		series = append(series, models.ForecastPoint{
			Week:       item.Week,
			Net:        &net,
			IsForecast: false,
		})
	}

	baseValue := mean(netValues[len(netValues)-windowSize:])
	lastWeek := historical[len(historical)-1].Week

	for i := 0; i < ForecastHorizonWeeks; i++ {
		dampening := math.Pow(trendDampening, float64(i))
		value := math.Round((baseValue+trend*float64(i+1)*dampening)*100) / 100
		series = append(series, models.ForecastPoint{
			Week:       lastWeek.Add(time.Duration(i+1) * 7 * 24 * time.Hour),
			Forecast:   &value,
			IsForecast: true,
		})
	}

	return series
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
