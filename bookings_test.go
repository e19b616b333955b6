package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

var errDiskOnFire = errors.New("disk on fire at /var/lib/roombox")

func (brokenStore) ReadAll(context.Context) ([]Booking, error) { return nil, errDiskOnFire }

func (brokenStore) Claim(context.Context, Slot, string) ([]Booking, error) {
	return nil, errDiskOnFire
}

func (brokenStore) Close() error { return nil }

func testConfig() *Config {
	return &Config{
		maxNameLength: 64,
		port:          8080,
		store:         storeFile,
	}
}

func newTestRouter(t *testing.T, store Store) (*httprouter.Router, *bookingService) {
	t.Helper()

	cfg := testConfig()
	errs := make(chan error, 64)
	svc := newBookingService(cfg, store, newLiveHub())

	return newRouter(cfg, svc, errs), svc
}

func newFileTestRouter(t *testing.T) *httprouter.Router {
	t.Helper()

	store, err := openFileStore(filepath.Join(t.TempDir(), "bookings.json"))
	require.NoError(t, err)

	router, _ := newTestRouter(t, store)

	return router
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func getBoard(t *testing.T, h http.Handler) map[string]*string {
	t.Helper()

	rec := do(t, h, http.MethodGet, "/api/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var raw []struct {
		SlotID   string  `json:"slot_id"`
		BookedBy *string `json:"booked_by"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw, slotCount)

	board := make(map[string]*string, len(raw))
	for i, entry := range raw {
		require.Equal(t, Slot(i+1).String(), entry.SlotID)
		board[entry.SlotID] = entry.BookedBy
	}

	return board
}

func booked(board map[string]*string) map[string]string {
	out := make(map[string]string)
	for k, v := range board {
		if v != nil {
			out[k] = *v
		}
	}

	return out
}

func TestGetBookingsFreshStore(t *testing.T) {
	router := newFileTestRouter(t)

	board := getBoard(t, router)
	for _, slot := range allSlots() {
		v, ok := board[slot.String()]
		assert.True(t, ok)
		assert.Nil(t, v)
	}
}

func TestClaimTrimsName(t *testing.T) {
	router := newFileTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/bookings", `{"room":"5","name":" Carol "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	assert.Equal(t, map[string]string{"5": "Carol"}, booked(getBoard(t, router)))
}

func TestClaimWithSlotInPath(t *testing.T) {
	router := newFileTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/bookings/10", `{"name":"Dave"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/bookings/11", `{"name":"Dave"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, map[string]string{"10": "Dave"}, booked(getBoard(t, router)))
}

func TestClaimOverwritesAndIsIdempotent(t *testing.T) {
	router := newFileTestRouter(t)

	for _, body := range []string{
		`{"room":"3","name":"Alice"}`,
		`{"room":"3","name":"Alice"}`,
	} {
		rec := do(t, router, http.MethodPost, "/api/bookings", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, map[string]string{"3": "Alice"}, booked(getBoard(t, router)))

	rec := do(t, router, http.MethodPost, "/api/bookings", `{"room":"3","name":"Bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"3": "Bob"}, booked(getBoard(t, router)))
}

func TestClaimRejectsInvalidInput(t *testing.T) {
	router := newFileTestRouter(t)

	cases := map[string]string{
		"empty name":       `{"room":"1","name":""}`,
		"blank name":       `{"room":"1","name":"   "}`,
		"missing name":     `{"room":"1"}`,
		"room zero":        `{"room":"0","name":"Eve"}`,
		"room eleven":      `{"room":"11","name":"Eve"}`,
		"room letters":     `{"room":"abc","name":"Eve"}`,
		"empty room":       `{"room":"","name":"Eve"}`,
		"missing room":     `{"name":"Eve"}`,
		"padded room":      `{"room":"05","name":"Eve"}`,
		"numeric room":     `{"room":5,"name":"Eve"}`,
		"numeric name":     `{"room":"5","name":42}`,
		"unknown field":    `{"room":"5","name":"Eve","admin":true}`,
		"not json":         `room=5&name=Eve`,
		"two documents":    `{"room":"5","name":"Eve"}{"room":"6","name":"Eve"}`,
		"name too long":    `{"room":"5","name":"` + strings.Repeat("x", 65) + `"}`,
		"empty body":       ``,
		"array body":       `[]`,
		"null room":        `{"room":null,"name":"Eve"}`,
		"whitespace room":  `{"room":" 5 ","name":"Eve"}`,
		"negative room":    `{"room":"-3","name":"Eve"}`,
		"huge room number": `{"room":"99999999999999999999","name":"Eve"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/bookings", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}

	assert.Empty(t, booked(getBoard(t, router)))
}

func TestStorageFailuresAreGeneric(t *testing.T) {
	router, _ := newTestRouter(t, brokenStore{})

	rec := do(t, router, http.MethodGet, "/api/bookings", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/bookings", `{"room":"2","name":"Frank"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")

	// validation still runs before the store is touched
	rec = do(t, router, http.MethodPost, "/api/bookings", `{"room":"12","name":"Frank"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceWrapsStorageErrors(t *testing.T) {
	svc := newBookingService(testConfig(), brokenStore{}, newLiveHub())

	_, err := svc.list(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errDiskOnFire)

	_, err = svc.claim(context.Background(), "1", "Gina")
	assert.ErrorIs(t, err, ErrStorage)

	status, message := statusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, message, "disk")
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newFileTestRouter(t)

	const id = "0b6f4a2c-8d0e-4c55-9a0e-3f5d1c2b7a90"

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestPrefixedRoutes(t *testing.T) {
	store, err := openFileStore(filepath.Join(t.TempDir(), "bookings.json"))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.prefix = "/rooms"
	router := newRouter(cfg, newBookingService(cfg, store, newLiveHub()), make(chan error, 8))

	rec := do(t, router, http.MethodPost, "/rooms/api/bookings", `{"room":"4","name":"Hank"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/bookings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrefixedPagesLinkUnderPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/rooms"

	page := newPage(cfg, "Server Error", "An error has occurred.")
	assert.Contains(t, page, `href="/rooms/favicon.svg"`)
	assert.Contains(t, page, `<a href="/rooms/">`)
	assert.NotContains(t, page, `href="/favicon.svg"`)

	store, err := openFileStore(filepath.Join(t.TempDir(), "bookings.json"))
	require.NoError(t, err)

	router := newRouter(cfg, newBookingService(cfg, store, newLiveHub()), make(chan error, 8))

	rec := do(t, router, http.MethodGet, "/rooms/favicon.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	assert.Contains(t, newPage(testConfig(), "Server Error", ""), `href="/favicon.svg"`)
}
