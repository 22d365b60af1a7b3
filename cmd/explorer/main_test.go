package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olids/explorer/internal/config"
	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
	"github.com/olids/explorer/internal/platform/sandbox"
)

const fixturePath = "../../internal/platform/sandbox/testdata/fixture.yaml"

var fixtureNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:             env,
		DataSource:      config.DataSourceFixture,
		FixtureFile:     fixturePath,
		CORSOrigins:     []string{"http://localhost:8501"},
		MaxObservations: 1000,
		MaxMedications:  1000,
		MaxAppointments: 100,
		QueryTimeout:    5 * time.Second,
	}
}

func fixtureStore(t *testing.T) *sandbox.Store {
	t.Helper()
	d, err := sandbox.Load(fixturePath)
	require.NoError(t, err)
	return sandbox.NewStore(d, 100)
}

func doGet(e http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Routes(t *testing.T) {
	e := newServer(testConfig("development"), zerolog.Nop(), fixtureBackend(fixtureStore(t)))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"health", "/health", http.StatusOK},
		{"resolve", "/api/v1/patients/resolve?q=424242", http.StatusOK},
		{"search", "/api/v1/patients?q=P-1001", http.StatusOK},
		{"demographics", "/api/v1/patients/P-1001", http.StatusOK},
		{"registrations", "/api/v1/patients/P-1001/registrations", http.StatusOK},
		{"timeline", "/api/v1/patients/424242/timeline/registration", http.StatusOK},
		{"unknown type", "/api/v1/patients/P-1001/timeline/allergy", http.StatusBadRequest},
		{"problems", "/api/v1/patients/P-1001/problems", http.StatusOK},
		{"observations", "/api/v1/patients/P-1001/observations?range=all", http.StatusOK},
		{"medication summary", "/api/v1/patients/P-1001/medications/summary", http.StatusOK},
		{"appointments", "/api/v1/patients/P-1001/appointments?range=all", http.StatusOK},
		{"summary", "/api/v1/patients/P-1001/summary", http.StatusOK},
		{"unknown patient", "/api/v1/patients/P-9999/summary", http.StatusNotFound},
		{"sandbox stats", "/sandbox/stats", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(e, tt.path)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_Health(t *testing.T) {
	e := newServer(testConfig("development"), zerolog.Nop(), fixtureBackend(fixtureStore(t)))

	rec := doGet(e, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string        `json:"status"`
		DataSource string        `json:"data_source"`
		Stats      sandbox.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, config.DataSourceFixture, body.DataSource)
	assert.Equal(t, 2, body.Stats.Patients)
}

func TestServer_SandboxOnlyInDevelopment(t *testing.T) {
	e := newServer(testConfig("staging"), zerolog.Nop(), fixtureBackend(fixtureStore(t)))

	assert.Equal(t, http.StatusNotFound, doGet(e, "/sandbox/stats").Code)
	assert.Equal(t, http.StatusOK, doGet(e, "/health").Code)
}

func TestServer_ResponseHeaders(t *testing.T) {
	e := newServer(testConfig("development"), zerolog.Nop(), fixtureBackend(fixtureStore(t)))

	rec := doGet(e, "/api/v1/patients/P-1001")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestServer_RateLimited(t *testing.T) {
	cfg := testConfig("development")
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	e := newServer(cfg, zerolog.Nop(), fixtureBackend(fixtureStore(t)))

	assert.Equal(t, http.StatusOK, doGet(e, "/api/v1/patients/P-1001").Code)
	assert.Equal(t, http.StatusTooManyRequests, doGet(e, "/api/v1/patients/P-1001").Code)
}

func TestOpenBackend_Fixture(t *testing.T) {
	b, err := openBackend(context.Background(), testConfig("development"), zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.store)
	assert.Len(t, b.store.Dataset().Patients, 2)
}

func TestOpenBackend_MissingFixture(t *testing.T) {
	cfg := testConfig("development")
	cfg.FixtureFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := openBackend(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func newTimelineService(t *testing.T) *timeline.Service {
	t.Helper()
	svc := timeline.NewService(fixtureStore(t), zerolog.Nop())
	svc.SetClock(func() time.Time { return fixtureNow })
	return svc
}

func TestRunTimeline_Table(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runTimeline(context.Background(), newTimelineService(t), timelineOptions{
		Identifier: "424242",
		Type:       "registration",
		Range:      "all",
		Format:     formatTable,
		Out:        &out,
		Err:        &errOut,
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Holloway")
	assert.Contains(t, got, "Archway")
	assert.Contains(t, got, "current")
	assert.Contains(t, got, "historical")
	assert.Contains(t, got, "2 registration record(s) for P-1001")
	assert.Empty(t, errOut.String())
}

func TestRunTimeline_JSON(t *testing.T) {
	var out bytes.Buffer
	err := runTimeline(context.Background(), newTimelineService(t), timelineOptions{
		Identifier: "P-1001",
		Type:       "registration",
		Range:      "all",
		Format:     formatJSON,
		Out:        &out,
		Err:        &bytes.Buffer{},
	})
	require.NoError(t, err)

	var tl timeline.Timeline
	require.NoError(t, json.Unmarshal(out.Bytes(), &tl))
	require.Len(t, tl.Records, 2)
	assert.Equal(t, timeline.StatusCurrent, tl.Records[0].Status)
	assert.Equal(t, timeline.StatusHistorical, tl.Records[1].Status)
	assert.Equal(t, "P-1001", tl.Patient.PersonID)
}

func TestRunTimeline_Monthly(t *testing.T) {
	var out bytes.Buffer
	err := runTimeline(context.Background(), newTimelineService(t), timelineOptions{
		Identifier: "P-1001",
		Type:       "appointment",
		Range:      "all",
		Format:     formatJSON,
		Monthly:    true,
		Out:        &out,
		Err:        &bytes.Buffer{},
	})
	require.NoError(t, err)

	var months []timeline.MonthBucket
	require.NoError(t, json.Unmarshal(out.Bytes(), &months))
	require.Len(t, months, 4)
	counts := make([]int, len(months))
	for i, m := range months {
		counts[i] = m.Count
	}
	assert.Equal(t, []int{2, 0, 0, 1}, counts)
}

func TestRunTimeline_Errors(t *testing.T) {
	svc := newTimelineService(t)
	base := timelineOptions{Identifier: "P-1001", Type: "registration", Range: "all", Format: formatJSON, Out: &bytes.Buffer{}, Err: &bytes.Buffer{}}

	tests := []struct {
		name   string
		mutate func(*timelineOptions)
		is     error
	}{
		{"unknown patient", func(o *timelineOptions) { o.Identifier = "P-9999" }, timeline.ErrNotFound},
		{"bad range", func(o *timelineOptions) { o.Range = "7d" }, timeline.ErrInvalidDateRange},
		{"bad type", func(o *timelineOptions) { o.Type = "allergy" }, nil},
		{"bad format", func(o *timelineOptions) { o.Format = "csv" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			err := runTimeline(context.Background(), svc, opts)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestDetectFormat_Explicit(t *testing.T) {
	assert.Equal(t, formatJSON, detectFormat(formatJSON))
	assert.Equal(t, formatTable, detectFormat(formatTable))
}

func TestRenderMigrations(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var out bytes.Buffer
	err := renderMigrations(&out, []db.MigrationStatus{
		{Version: 1, Name: "001_olids_core.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_indexes.sql"},
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "001_olids_core.sql")
	assert.Contains(t, got, "2024-01-02 03:04:05")
	assert.Contains(t, got, "pending")
}

func TestFixtureGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "generated.yaml")

	cmd := rootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"fixture", "generate", "--patients", "3", "--seed", "7", "--out", out})
	require.NoError(t, cmd.Execute())

	d, err := sandbox.Load(out)
	require.NoError(t, err)
	assert.Len(t, d.Patients, 3)
	assert.NotEmpty(t, d.Registrations)
	assert.True(t, strings.Contains(stderr.String(), "Wrote 3 patients"))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
