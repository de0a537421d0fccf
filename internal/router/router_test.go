package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/authtoken"
	"github.com/iliyamo/cinema-booking/internal/booking"
	"github.com/iliyamo/cinema-booking/internal/clock"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/memstore"
	"github.com/iliyamo/cinema-booking/internal/middleware"
	"github.com/iliyamo/cinema-booking/internal/model"
)

const secret = "router-test-secret"

var today = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type api struct {
	t         *testing.T
	e         *echo.Echo
	store     *memstore.Store
	clock     *clock.FakeClock
	screening *model.Screening
}

func newAPI(t *testing.T) *api {
	t.Helper()
	st := memstore.New()
	sc, err := st.SeedDemo(today)
	require.NoError(t, err)
	clk := clock.Fake(today)
	engine := booking.NewEngine(st, booking.WithClock(clk))
	e := New(Deps{JWTSecret: secret, Service: engine, Catalog: st, Clock: clk})
	return &api{t: t, e: e, store: st, clock: clk, screening: sc}
}

func (a *api) token(userID uint64, role string) string {
	tok, err := authtoken.Issue(secret, userID, role, time.Hour, time.Now())
	require.NoError(a.t, err)
	return tok.Token
}

func (a *api) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) book(userID uint64, seats ...string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(handler.BookRequest{ScreeningID: a.screening.ID, Seats: seats})
	return a.do(http.MethodPost, "/tickets/book", a.token(userID, middleware.RoleCustomer), string(body))
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"memory","redis":"disabled"}`, rec.Body.String())
}

func TestBrowseScreenings(t *testing.T) {
	a := newAPI(t)

	list := decode[[]handler.ScreeningResponse](t, a.do(http.MethodGet, "/screenings", "", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "The Grand Premiere", list[0].Title)
	assert.Equal(t, 54, list[0].AvailableSeats)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/screenings?limit=x", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/screenings/abc", "", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/screenings/999", "", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/screenings/999/seats", "", "").Code)
}

func TestBookThenConflict(t *testing.T) {
	a := newAPI(t)

	rec := a.book(1, "3-5", "3-6")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[handler.BookResponse](t, rec)
	assert.Equal(t, "booking confirmed", res.Message)
	require.Len(t, res.Tickets, 2)
	assert.Equal(t, "3-5", res.Tickets[0].Seat)
	assert.Equal(t, "The Grand Premiere", res.Screening.Title)
	assert.Equal(t, "Hall 1", res.Screening.Hall)
	assert.True(t, strings.HasPrefix(res.Tickets[0].Code, "TICKET-"))

	rec = a.book(2, "3-4", "3-5")
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, "seat_conflict", conflict.Error)
	assert.Equal(t, "seat 5 in row 3 taken", conflict.Message)
	assert.Equal(t, []string{"3-5"}, conflict.Seats)

	seats := decode[handler.SeatsResponse](t, a.do(http.MethodGet, "/screenings/1/seats", "", ""))
	assert.Equal(t, []string{"3-5", "3-6"}, seats.OccupiedSeats)

	sc, err := a.store.Screening(t.Context(), a.screening.ID)
	require.NoError(t, err)
	assert.Equal(t, 52, sc.AvailableSeats)
}

func TestBookValidation(t *testing.T) {
	a := newAPI(t)
	tok := a.token(1, middleware.RoleCustomer)

	cases := map[string]string{
		"empty seats":    `{"screeningId":1,"seats":[]}`,
		"missing id":     `{"seats":["1-1"]}`,
		"malformed seat": `{"screeningId":1,"seats":["A-1"]}`,
		"outside hall":   `{"screeningId":1,"seats":["7-1"]}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/tickets/book", tok, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := a.do(http.MethodPost, "/tickets/book", tok, `{"screeningId":999,"seats":["1-1"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/tickets/book", "", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/tickets/my", "bogus", "").Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/tickets/my", a.token(1, "GUEST"), "").Code)
}

func TestMyTicketsAndCancel(t *testing.T) {
	a := newAPI(t)
	rec := a.book(1, "2-1", "2-2")
	require.Equal(t, http.StatusCreated, rec.Code)
	booked := decode[handler.BookResponse](t, rec)

	rec = a.do(http.MethodGet, "/tickets/my", a.token(1, middleware.RoleCustomer), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tickets":[`)
	mine := decode[handler.TicketsResponse](t, rec).Tickets
	require.Len(t, mine, 2)
	assert.Equal(t, "The Grand Premiere", mine[0].Title)
	require.NotNil(t, mine[0].StartsAt)

	id := booked.Tickets[0].ID
	path := "/tickets/" + jsonNumber(id)

	// Someone else's ticket looks missing.
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, a.token(2, middleware.RoleCustomer), "").Code)

	rec = a.do(http.MethodDelete, path, a.token(1, middleware.RoleCustomer), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[handler.CancelResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Ticket.Status)
	require.NotNil(t, cancelled.Ticket.CancelledAt)

	// A second cancel of the same ticket is not found.
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, a.token(1, middleware.RoleCustomer), "").Code)

	mine = decode[handler.TicketsResponse](t, a.do(http.MethodGet, "/tickets/my", a.token(1, middleware.RoleCustomer), "")).Tickets
	assert.Len(t, mine, 1)

	// A user without tickets gets an empty list, not null.
	rec = a.do(http.MethodGet, "/tickets/my", a.token(3, middleware.RoleCustomer), "")
	assert.JSONEq(t, `{"tickets":[]}`, rec.Body.String())
}

func TestCancelInsideCutoff(t *testing.T) {
	a := newAPI(t)
	rec := a.book(1, "1-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[handler.BookResponse](t, rec).Tickets[0].ID

	a.clock.Set(a.screening.StartsAt.Add(-119 * time.Minute))
	rec = a.do(http.MethodDelete, "/tickets/"+jsonNumber(id), a.token(1, middleware.RoleCustomer), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "cancellation_window_closed", body["error"])
}

func TestSeatMap(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.book(1, "1-2").Code)

	m := decode[handler.SeatMapResponse](t, a.do(http.MethodGet, "/screenings/1/seatmap", "", ""))
	assert.Equal(t, 6, m.Rows)
	assert.Equal(t, 9, m.SeatsPerRow)
	require.Len(t, m.Seats, 54)
	assert.Equal(t, handler.SeatCell{Seat: "1-1", Row: 1, Number: 1, State: "free"}, m.Seats[0])
	assert.Equal(t, "reserved", m.Seats[1].State)
	assert.Equal(t, 53, m.Screening.AvailableSeats)
}

func TestAdminCreateScreening(t *testing.T) {
	a := newAPI(t)
	admin := a.token(9, middleware.RoleAdmin)
	body := `{"filmId":1,"hallId":1,"startsAt":"2026-03-05T20:00:00Z","priceCents":1500}`

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/admin/screenings", a.token(1, middleware.RoleCustomer), body).Code)

	rec := a.do(http.MethodPost, "/admin/screenings", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[handler.ScreeningResponse](t, rec)
	assert.Equal(t, 54, created.AvailableSeats)
	assert.Equal(t, 54, created.Capacity)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/admin/screenings", admin, body).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/admin/screenings", admin,
		`{"filmId":1,"hallId":42,"startsAt":"2026-03-05T20:00:00Z"}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/admin/screenings", admin,
		`{"filmId":1,"hallId":1,"startsAt":"2026-02-01T20:00:00Z"}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/admin/screenings", admin, `{"hallId":1}`).Code)
}

func TestAdminCatalog(t *testing.T) {
	a := newAPI(t)
	admin := a.token(9, middleware.RoleAdmin)

	rec := a.do(http.MethodPost, "/admin/films", admin, `{"title":"  Vertigo ","durationMin":128}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	film := decode[handler.FilmResponse](t, rec)
	assert.Equal(t, "Vertigo", film.Title)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/admin/films", admin, `{"title":"Vertigo"}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/admin/films", admin, `{"durationMin":10}`).Code)

	rec = a.do(http.MethodPost, "/admin/halls", admin, `{"name":"Hall 2","rows":4,"seatsPerRow":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hall := decode[handler.HallResponse](t, rec)
	assert.Equal(t, 20, hall.Capacity)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/admin/halls", admin, `{"name":"Hall 2","rows":1,"seatsPerRow":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/admin/halls", admin, `{"name":"Hall 3","rows":0,"seatsPerRow":5}`).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/admin/halls", a.token(1, middleware.RoleCustomer),
		`{"name":"Hall 4","rows":1,"seatsPerRow":1}`).Code)

	body := `{"filmId":` + jsonNumber(film.ID) + `,"hallId":` + jsonNumber(hall.ID) + `,"startsAt":"2026-03-06T18:00:00Z","priceCents":700}`
	rec = a.do(http.MethodPost, "/admin/screenings", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 20, decode[handler.ScreeningResponse](t, rec).AvailableSeats)
}

func TestConcurrentBookingsOverHTTP(t *testing.T) {
	a := newAPI(t)
	const n = 20
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = a.book(uint64(i+1), "4-4").Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		default:
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, a.store.ActiveTicketCount(a.screening.ID))
}

func jsonNumber(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
