package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"ledgerline-backend/internal/models"
)

// GetLatestForecast returns the newest forecast younger than maxAge, or
// (nil, nil) when no usable forecast exists.
func (s *Storage) GetLatestForecast(ctx context.Context, orgID string, maxAge time.Duration) (*models.Forecast, error) {
	query := `
		SELECT id, organization_id, horizon, granularity, series, computed_at
		FROM forecasts
		WHERE organization_id = $1 AND computed_at > $2
		ORDER BY computed_at DESC
		LIMIT 1
	`

	var forecast models.Forecast
	err := s.db.QueryRowContext(ctx, query, orgID, time.Now().Add(-maxAge)).Scan(
		&forecast.ID,
		&forecast.OrgID,
		&forecast.Horizon,
		&forecast.Granularity,
		&forecast.SeriesJSON,
		&forecast.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(forecast.SeriesJSON, &forecast.Series); err != nil {
		return nil, err
	}

	return &forecast, nil
}

func (s *Storage) SaveForecast(ctx context.Context, orgID string, horizon int, granularity string, series []models.ForecastPoint) (string, error) {
	seriesJSON, err := json.Marshal(series)
	if err != nil {
		return "", err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO forecasts (id, organization_id, horizon, granularity, series, computed_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, NOW())
		RETURNING id
	`, uuid.New().String(), orgID, horizon, granularity, seriesJSON).Scan(&id)
	return id, err
}
