package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/tally/app/dto"
	"github.com/amirphl/tally/app/handlers"
	businessflow "github.com/amirphl/tally/business_flow"
	"github.com/amirphl/tally/repository"
	testingutil "github.com/amirphl/tally/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    dto.CounterResponse `json:"data"`
	Error   dto.ErrorDetail     `json:"error"`
}

func newCounterApp(flow businessflow.CounterFlow) *fiber.App {
	h := handlers.NewCounterHandler(flow, "test-version")
	app := fiber.New()
	app.Get("/", h.Welcome)
	app.Post("/counter", h.Increment)
	app.Get("/api/v1/counter", h.GetCounter)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodePage(t *testing.T, resp *http.Response) dto.PageModel {
	t.Helper()
	var page dto.PageModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	return page
}

func decodeEnvelope(t *testing.T, resp *http.Response) counterEnvelope {
	t.Helper()
	var env counterEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestCounterHandler(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := businessflow.NewCounterFlow(repository.NewCounterRepository(testDB.DB), nil)
		app := newCounterApp(flow)

		reset := func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
		}

		t.Run("FirstVisitStartsAtZero", func(t *testing.T) {
			reset(t)

			resp := do(t, app, fiber.MethodGet, "/", nil)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			page := decodePage(t, resp)
			assert.Equal(t, handlers.WelcomeComponent, page.Component)
			assert.Equal(t, int64(0), page.Props.Count)
			assert.Equal(t, "/", page.URL)
			assert.Equal(t, "test-version", page.Version)

			rows, err := fixtures.CounterRows()
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, int64(0), rows[0].Count)
		})

		t.Run("SingleIncrement", func(t *testing.T) {
			reset(t)
			do(t, app, fiber.MethodGet, "/", nil)

			resp := do(t, app, fiber.MethodPost, "/counter", nil)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			env := decodeEnvelope(t, resp)
			assert.True(t, env.Success)
			assert.Equal(t, "Counter incremented", env.Message)
			assert.Equal(t, int64(1), env.Data.Count)

			stored, err := fixtures.HasCounterWithCount(1)
			require.NoError(t, err)
			assert.True(t, stored)
		})

		t.Run("ThreeSequentialIncrements", func(t *testing.T) {
			reset(t)
			do(t, app, fiber.MethodGet, "/", nil)

			var last counterEnvelope
			for i := 1; i <= 3; i++ {
				resp := do(t, app, fiber.MethodPost, "/counter", nil)
				require.Equal(t, fiber.StatusOK, resp.StatusCode)
				last = decodeEnvelope(t, resp)
				assert.Equal(t, int64(i), last.Data.Count)
			}
			assert.Equal(t, int64(3), last.Data.Count)

			stored, err := fixtures.HasCounterWithCount(3)
			require.NoError(t, err)
			assert.True(t, stored)
		})

		t.Run("IncrementWithoutPriorVisit", func(t *testing.T) {
			reset(t)

			resp := do(t, app, fiber.MethodPost, "/counter", nil)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, int64(1), decodeEnvelope(t, resp).Data.Count)
		})

		t.Run("PersistsAcrossRequests", func(t *testing.T) {
			reset(t)
			do(t, app, fiber.MethodGet, "/", nil)
			do(t, app, fiber.MethodPost, "/counter", nil)
			do(t, app, fiber.MethodPost, "/counter", nil)

			page := decodePage(t, do(t, app, fiber.MethodGet, "/", nil))
			assert.Equal(t, int64(2), page.Props.Count)

			env := decodeEnvelope(t, do(t, app, fiber.MethodGet, "/api/v1/counter", nil))
			assert.True(t, env.Success)
			assert.Equal(t, int64(2), env.Data.Count)
		})

		t.Run("UsesExistingCounter", func(t *testing.T) {
			reset(t)
			_, err := fixtures.SeedCounter(42)
			require.NoError(t, err)

			page := decodePage(t, do(t, app, fiber.MethodGet, "/", nil))
			assert.Equal(t, int64(42), page.Props.Count)

			env := decodeEnvelope(t, do(t, app, fiber.MethodPost, "/counter", nil))
			assert.Equal(t, int64(43), env.Data.Count)

			rows, err := fixtures.CounterRows()
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})

		t.Run("RepeatedVisitsCreateOneRow", func(t *testing.T) {
			reset(t)
			for i := 0; i < 3; i++ {
				resp := do(t, app, fiber.MethodGet, "/", nil)
				require.Equal(t, fiber.StatusOK, resp.StatusCode)
				assert.Equal(t, int64(0), decodePage(t, resp).Props.Count)
			}

			rows, err := fixtures.CounterRows()
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})

		t.Run("InertiaRequestGetsPageObject", func(t *testing.T) {
			reset(t)
			headers := map[string]string{handlers.InertiaHeader: "true", fiber.HeaderAccept: "text/html, application/xhtml+xml"}

			resp := do(t, app, fiber.MethodGet, "/", headers)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, "true", resp.Header.Get(handlers.InertiaHeader))
			assert.Contains(t, resp.Header.Get(fiber.HeaderVary), handlers.InertiaHeader)
			assert.Equal(t, int64(0), decodePage(t, resp).Props.Count)

			resp = do(t, app, fiber.MethodPost, "/counter", headers)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			page := decodePage(t, resp)
			assert.Equal(t, handlers.WelcomeComponent, page.Component)
			assert.Equal(t, int64(1), page.Props.Count)
			assert.Equal(t, "/counter", page.URL)
		})

		t.Run("BrowserGetsHTML", func(t *testing.T) {
			reset(t)
			headers := map[string]string{fiber.HeaderAccept: "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"}

			resp := do(t, app, fiber.MethodGet, "/", headers)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextHTML))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), `<output id="count">0</output>`)

			resp = do(t, app, fiber.MethodPost, "/counter", headers)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			body, err = io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), `<output id="count">1</output>`)
		})

		t.Run("StorageFailure", func(t *testing.T) {
			broken, err := testingutil.SetupTestDB()
			require.NoError(t, err)
			defer broken.TeardownTestDB()

			brokenApp := newCounterApp(businessflow.NewCounterFlow(repository.NewCounterRepository(broken.DB), nil))
			require.NoError(t, broken.Close())

			for _, tc := range []struct{ method, target string }{
				{fiber.MethodGet, "/"},
				{fiber.MethodPost, "/counter"},
				{fiber.MethodGet, "/api/v1/counter"},
			} {
				resp := do(t, brokenApp, tc.method, tc.target, nil)
				assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode, tc.target)

				env := decodeEnvelope(t, resp)
				assert.False(t, env.Success)
				assert.Equal(t, businessflow.CodeCounterStorageFailed, env.Error.Code)
			}
		})

		return nil
	})
	require.NoError(t, err)
}

type failingFlow struct{ err error }

func (f failingFlow) GetOrCreate(context.Context) (*dto.CounterDTO, error) { return nil, f.err }
func (f failingFlow) Increment(context.Context) (*dto.CounterDTO, error) { return nil, f.err }

func TestCounterHandlerUnexpectedError(t *testing.T) {
	app := newCounterApp(failingFlow{err: errors.New("boom")})

	resp := do(t, app, fiber.MethodPost, "/counter", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}
