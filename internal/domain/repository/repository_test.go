package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest_service/internal/domain/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestSnapshotRepository_SaveUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	captured := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	snap := model.NewSnapshot(model.RawGeospatial{NDVI: 0.7, SoilMoisture: 40, RainfallMM: 3, Source: "satellite"}, captured)
	key := model.NewCacheKey(model.Location{Latitude: 20.94, Longitude: 77.76}, captured)

	mock.ExpectExec("INSERT INTO geospatial_snapshots (.+) ON CONFLICT \\(lat_e4, lon_e4, snapshot_date\\) DO UPDATE").
		WithArgs(int64(209400), int64(777600), "2026-10-14", 0.7, 40.0, 3.0, sqlmock.AnyArg(), "satellite", captured, captured.Add(model.SnapshotTTL)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), key, snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_SaveError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	mock.ExpectExec("INSERT INTO geospatial_snapshots").WillReturnError(errors.New("connection reset"))

	err := repo.Save(context.Background(), model.CacheKey{Date: "2026-10-14"}, model.GeospatialSnapshot{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestSnapshotRepository_LoadActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	captured := now.Add(-24 * time.Hour)
	forecast, _ := json.Marshal([]model.DailyForecast{{Date: "2026-10-14", TempMaxC: 33, TempMinC: 24, HumidityPct: 70}})

	rows := sqlmock.NewRows([]string{
		"lat_e4", "lon_e4", "snapshot_date", "ndvi", "soil_moisture", "rainfall_mm",
		"forecast", "source", "captured_at", "expires_at",
	}).AddRow(int64(209400), int64(777600), "2026-10-13", 0.72, 45.0, 1.5, forecast, "satellite", captured, captured.Add(model.SnapshotTTL))

	mock.ExpectQuery("SELECT (.+) FROM geospatial_snapshots WHERE expires_at > \\$1").
		WithArgs(now).
		WillReturnRows(rows)

	got, err := repo.LoadActive(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "20.9400_77.7600_2026-10-13", got[0].Key.String())
	assert.Equal(t, 0.72, got[0].Snapshot.NDVI)
	require.Len(t, got[0].Snapshot.Forecast, 1)
	assert.Equal(t, 33.0, got[0].Snapshot.Forecast[0].TempMaxC)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)
	before := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM geospatial_snapshots WHERE expires_at < \\$1").
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRulesRepository_LoadRules(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRulesRepository(db)

	mock.ExpectQuery("SELECT id, name, type, credibility FROM rule_sources").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "credibility"}).
			AddRow("icar_phm", "ICAR Post-Harvest Manual", "ICAR", 0.95))
	mock.ExpectQuery("SELECT (.+) FROM spoilage_rules ORDER BY crop_id, id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "crop_id", "condition", "temp_min", "temp_max", "humidity_min", "humidity_max",
			"spoilage_time_hours", "severity", "source_id", "source_reference",
		}).AddRow("tomato_high_temp_humidity", "tomato", "High temperature and humidity",
			30.0, 45.0, 80.0, 100.0, 48, "critical", "icar_phm", "ICAR Post-Harvest Manual 2020, Page 45"))

	sources, rules, err := repo.LoadRules(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Len(t, rules, 1)
	assert.Equal(t, model.SeverityCritical, rules[0].Severity)
	assert.Equal(t, 48, rules[0].SpoilageTimeHours)
	assert.Equal(t, "tomato", rules[0].CropID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRulesRepository_ReplaceRules(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRulesRepository(db)

	source := model.Source{ID: "icar_phm", Name: "ICAR Post-Harvest Manual", Type: "ICAR", Credibility: 0.95}
	rule := model.SpoilageRule{
		ID: "r1", CropID: "tomato", Condition: "hot", TempMin: 30, TempMax: 45,
		HumidityMin: 80, HumidityMax: 100, SpoilageTimeHours: 48, Severity: model.SeverityCritical,
		SourceID: "icar_phm", SourceReference: "p45",
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM spoilage_rules").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM rule_sources").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO rule_sources").
		WithArgs("icar_phm", "ICAR Post-Harvest Manual", "ICAR", 0.95).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO spoilage_rules").
		WithArgs("r1", "tomato", "hot", 30.0, 45.0, 80.0, 100.0, 48, "critical", "icar_phm", "p45").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceRules(context.Background(), []model.Source{source}, []model.SpoilageRule{rule}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHistoryRecorder_Record(t *testing.T) {
	db, mock := newMockDB(t)
	recorder := NewPostgresHistoryRecorder(db)

	created := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	rec := model.Recommendation{
		ID: "8c1f6a52-7fe4-4a39-9f0e-5d2d3c1b9a10", Crop: "tomato",
		Location:          model.Location{Latitude: 20.94, Longitude: 77.76},
		FieldSizeHectares: 2, Language: "en",
		Action: model.ActionHarvestNow, Urgency: model.UrgencyCritical, PrimaryFactor: model.FactorStormRisk,
		Confidence: 100, DataQuality: model.QualityExcellent,
		ReasoningChain: []string{"storm"}, CreatedAt: created,
	}

	mock.ExpectExec("INSERT INTO recommendation_history").
		WithArgs(rec.ID, "", "tomato", 20.94, 77.76, 2.0, "en",
			"harvest_now", "critical", "storm_risk", 100.0, "excellent",
			sqlmock.AnyArg(), sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, recorder.Record(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}
