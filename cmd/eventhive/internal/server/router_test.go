package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/dbtest"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/dashboard"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/events"
)

var now = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	m.Run()
}

type testApp struct {
	server   *httptest.Server
	clock    *clock.Mock
	accounts *accounts.Service
	users    *repository.BunUserRepository
	events   *repository.BunEventRepository
	regs     *repository.BunRegistrationRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := dbtest.Open(t)

	mockClock := clock.NewMock()
	mockClock.Set(now)

	users := repository.NewBunUserRepository(db)
	eventRepo := repository.NewBunEventRepository(db)
	regs := repository.NewBunRegistrationRepository(db)
	feedback := repository.NewBunFeedbackRepository(db)

	enforcer, err := auth.InitEnforcer(db)
	require.NoError(t, err)
	authorizer := auth.NewAuthorizer(enforcer)

	accountSvc := accounts.NewService(users, repository.NewBunSessionRepository(db)).
		WithClock(mockClock).
		WithSessionDurations(30*24*time.Hour, 365*24*time.Hour)

	router, err := NewRouter(RouterOptions{
		Accounts:   accountSvc,
		Events:     events.NewService(eventRepo, authorizer).WithClock(mockClock),
		Attendance: attendance.NewService(regs, eventRepo, users, feedback).WithClock(mockClock),
		Dashboards: dashboard.NewService(users, eventRepo, regs, feedback).WithClock(mockClock),
		Authorizer: authorizer,
		Flashes:    flash.NewStore([]byte("0123456789abcdef0123456789abcdef"), false),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{
		server:   srv,
		clock:    mockClock,
		accounts: accountSvc,
		users:    users,
		events:   eventRepo,
		regs:     regs,
	}
}

// client returns a browser-like client that keeps cookies and does not
// follow redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	ctx := context.Background()
	if role == models.RoleAdmin {
		u, err := a.accounts.CreateAdmin(ctx, name, name+"@example.com", "pw-"+name)
		require.NoError(t, err)
		return u
	}
	u, err := a.accounts.Signup(ctx, accounts.SignupInput{Username: name, Email: name + "@example.com", Password: "pw-" + name, Role: role})
	require.NoError(t, err)
	return u
}

// signedIn creates a user and returns a client logged in as them.
func (a *testApp) signedIn(t *testing.T, name string, role models.Role) (*http.Client, *models.User) {
	t.Helper()
	u := a.user(t, name, role)
	c := a.client(t)
	res := a.post(t, c, "/auth/login", url.Values{"email": {u.Email}, "password": {"pw-" + name}})
	require.Equal(t, http.StatusFound, res.status)
	return c, u
}

func (a *testApp) event(t *testing.T, title string, organizer *models.User, at time.Time) *models.Event {
	t.Helper()
	e := &models.Event{Title: title, Description: "About " + title, DatePosted: now, EventDate: at, Location: "Hall A", OrganizerID: &organizer.ID}
	require.NoError(t, a.events.Create(context.Background(), e))
	return e
}

type response struct {
	status   int
	location string
	body     string
	header   http.Header
}

func read(t *testing.T, res *http.Response) response {
	t.Helper()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return response{status: res.StatusCode, location: res.Header.Get("Location"), body: string(body), header: res.Header}
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) response {
	t.Helper()
	res, err := c.Get(a.server.URL + path)
	require.NoError(t, err)
	return read(t, res)
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) response {
	t.Helper()
	res, err := c.PostForm(a.server.URL+path, form)
	require.NoError(t, err)
	return read(t, res)
}

func (a *testApp) postJSON(t *testing.T, c *http.Client, path, body string) response {
	t.Helper()
	res, err := c.Post(a.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return read(t, res)
}

func TestHealthAndNotFound(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	res := app.get(t, c, "/health")
	assert.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, `{"status":"ok"}`, res.body)

	res = app.get(t, c, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Contains(t, res.body, "does not exist")

	res = app.get(t, c, "/edit_event/abc")
	assert.Equal(t, http.StatusFound, res.status, "gate runs before id parsing")
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t)
	sam := app.user(t, "sam", models.RoleStudent)
	c := app.client(t)

	res := app.get(t, c, "/auth/login")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Log In")

	res = app.post(t, c, "/auth/login", url.Values{"email": {sam.Email}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, accounts.MsgLoginFailed)

	res = app.post(t, c, "/auth/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.body, "Invalid email address.")

	res = app.post(t, c, "/auth/login?next=%2Fstudent_dashboard", url.Values{"email": {sam.Email}, "password": {"pw-sam"}})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/student_dashboard", res.location)

	res = app.get(t, c, "/student_dashboard")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "My Dashboard")
	assert.Contains(t, res.body, MsgLoggedIn)

	res = app.get(t, c, "/auth/login")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)

	res = app.get(t, c, "/auth/logout")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)

	res = app.get(t, c, "/student_dashboard")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/auth/login?next=%2Fstudent_dashboard", res.location)
}

func TestLogin_NextMustBeLocal(t *testing.T) {
	app := newTestApp(t)
	sam := app.user(t, "sam", models.RoleStudent)

	for _, next := range []string{"https://evil.example", "//evil.example", "/\\evil.example", "javascript:alert(1)"} {
		t.Run(next, func(t *testing.T) {
			c := app.client(t)
			res := app.post(t, c, "/auth/login?next="+url.QueryEscape(next), url.Values{"email": {sam.Email}, "password": {"pw-sam"}})
			require.Equal(t, http.StatusFound, res.status)
			assert.Equal(t, "/", res.location)
		})
	}
}

func TestLogin_RememberSetsPersistentCookie(t *testing.T) {
	app := newTestApp(t)
	sam := app.user(t, "sam", models.RoleStudent)

	for _, tt := range []struct {
		remember   string
		persistent bool
	}{{"", false}, {"true", true}} {
		res := app.post(t, app.client(t), "/auth/login", url.Values{"email": {sam.Email}, "password": {"pw-sam"}, "remember": {tt.remember}})
		require.Equal(t, http.StatusFound, res.status)

		var session *http.Cookie
		for _, raw := range res.header.Values("Set-Cookie") {
			if cookie, err := http.ParseSetCookie(raw); err == nil && cookie.Name == auth.SessionCookieName {
				session = cookie
			}
		}
		require.NotNil(t, session)
		assert.True(t, session.HttpOnly)
		assert.Equal(t, tt.persistent, !session.Expires.IsZero(), "remember=%q", tt.remember)
	}
}

func TestRegisterRoute(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	valid := func() url.Values {
		return url.Values{
			"username":         {"alice"},
			"email":            {"alice@example.com"},
			"password":         {"secret"},
			"confirm_password": {"secret"},
			"role":             {"Organizer"},
		}
	}

	res := app.get(t, c, "/auth/register")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `<option value="Organizer"`)
	assert.NotContains(t, res.body, `<option value="Admin"`)

	res = app.post(t, c, "/auth/register", valid())
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/auth/login", res.location)

	created, err := app.users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrganizer, created.Role)

	tests := []struct {
		name    string
		mutate  func(url.Values)
		message string
	}{
		{"duplicate username", func(v url.Values) { v.Set("email", "other@example.com") }, accounts.MsgUsernameTaken},
		{"duplicate email", func(v url.Values) { v.Set("username", "alicia") }, accounts.MsgEmailTaken},
		{"password mismatch", func(v url.Values) { v.Set("username", "bob"); v.Set("email", "bob@example.com"); v.Set("confirm_password", "nope") }, "Field must be equal to password."},
		{"username too short", func(v url.Values) { v.Set("username", "b"); v.Set("email", "b@example.com") }, "Field must be between 2 and 20 characters long."},
		{"admin role", func(v url.Values) { v.Set("username", "eve"); v.Set("email", "eve@example.com"); v.Set("role", "Admin") }, "Not a valid choice."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid()
			tt.mutate(form)
			res := app.post(t, c, "/auth/register", form)
			assert.Equal(t, http.StatusUnprocessableEntity, res.status)
			assert.Contains(t, res.body, tt.message)
		})
	}

	all, err := app.users.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1, "rejected signups create no rows")
}

func TestGate(t *testing.T) {
	app := newTestApp(t)
	student, _ := app.signedIn(t, "sam", models.RoleStudent)

	res := app.get(t, app.client(t), "/admin_dashboard")
	assert.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/auth/login?next=%2Fadmin_dashboard", res.location)

	res = app.get(t, student, "/create_event")
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)

	res = app.get(t, student, "/")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Access denied. You need to be an Admin, Organizer to view this page.")

	res = app.get(t, student, "/qr/scan")
	assert.Equal(t, http.StatusFound, res.status)

	organizer, _ := app.signedIn(t, "olga", models.RoleOrganizer)
	res = app.get(t, organizer, "/qr/scan")
	assert.Equal(t, http.StatusOK, res.status)
	res = app.get(t, organizer, "/student_dashboard")
	assert.Equal(t, http.StatusFound, res.status)
}

func TestEventPages(t *testing.T) {
	app := newTestApp(t)
	owner, olga := app.signedIn(t, "olga", models.RoleOrganizer)
	rival, _ := app.signedIn(t, "oscar", models.RoleOrganizer)
	admin, _ := app.signedIn(t, "root", models.RoleAdmin)

	res := app.post(t, owner, "/create_event", url.Values{
		"title":       {"Workshop"},
		"description": {"Hands-on Go"},
		"event_date":  {"2025-10-05T18:00"},
		"location":    {"Lab 1"},
	})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/events", res.location)

	list, err := app.events.ListByOrganizer(context.Background(), olga.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	event := list[0]
	assert.True(t, event.EventDate.Equal(time.Date(2025, 10, 5, 18, 0, 0, 0, time.UTC)))

	res = app.get(t, app.client(t), "/")
	assert.Contains(t, res.body, "Workshop")

	t.Run("invalid form re-renders", func(t *testing.T) {
		res := app.post(t, owner, "/create_event", url.Values{"title": {"X"}, "description": {"d"}, "event_date": {"tomorrow"}, "location": {"L"}})
		assert.Equal(t, http.StatusUnprocessableEntity, res.status)
		assert.Contains(t, res.body, "Not a valid datetime value.")
	})

	t.Run("rival organizer is forbidden", func(t *testing.T) {
		path := fmt.Sprintf("/edit_event/%d", event.ID)
		res := app.get(t, rival, path)
		assert.Equal(t, http.StatusForbidden, res.status)
		assert.Contains(t, res.body, events.MsgCannotEdit)

		res = app.post(t, rival, fmt.Sprintf("/delete_event/%d", event.ID), nil)
		assert.Equal(t, http.StatusForbidden, res.status)
		assert.Contains(t, res.body, events.MsgCannotDelete)

		stored, err := app.events.GetByID(context.Background(), event.ID)
		require.NoError(t, err)
		assert.Equal(t, "Workshop", stored.Title)
	})

	t.Run("owner edits", func(t *testing.T) {
		path := fmt.Sprintf("/edit_event/%d", event.ID)
		res := app.get(t, owner, path)
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, `value="2025-10-05T18:00"`)

		res = app.post(t, owner, path, url.Values{
			"title":       {"Workshop II"},
			"description": {"Hands-on Go"},
			"event_date":  {"2025-10-06T18:00"},
			"location":    {"Lab 2"},
		})
		require.Equal(t, http.StatusFound, res.status)
		assert.Equal(t, "/organizer_dashboard", res.location)
	})

	t.Run("filter", func(t *testing.T) {
		res := app.get(t, app.client(t), "/events?filter="+url.QueryEscape(`location == "Lab 2"`))
		assert.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "Workshop II")

		res = app.get(t, app.client(t), "/events?filter="+url.QueryEscape(`location ==`))
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Contains(t, res.body, "Invalid filter")
	})

	t.Run("admin deletes", func(t *testing.T) {
		res := app.post(t, admin, fmt.Sprintf("/delete_event/%d", event.ID), nil)
		require.Equal(t, http.StatusFound, res.status)
		assert.Equal(t, "/admin_dashboard", res.location)

		res = app.get(t, admin, fmt.Sprintf("/edit_event/%d", event.ID))
		assert.Equal(t, http.StatusNotFound, res.status)
	})
}

func TestRegistrationAndVerify(t *testing.T) {
	app := newTestApp(t)
	organizer, olga := app.signedIn(t, "olga", models.RoleOrganizer)
	student, sam := app.signedIn(t, "sam", models.RoleStudent)
	event := app.event(t, "Workshop", olga, now.Add(24*time.Hour))

	registerPath := fmt.Sprintf("/register/%d", event.ID)
	res := app.post(t, student, registerPath, nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/events", res.location)

	res = app.get(t, student, "/events")
	assert.Contains(t, res.body, attendance.MsgRegistered)
	assert.Contains(t, res.body, "Unregister")

	res = app.post(t, student, registerPath, nil)
	require.Equal(t, http.StatusFound, res.status)
	res = app.get(t, student, "/events")
	assert.Contains(t, res.body, attendance.MsgAlreadyRegistered)

	res = app.post(t, student, "/register/9999", nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	payload := fmt.Sprintf("user_id:%d,event_id:%d,event_title:Workshop", sam.ID, event.ID)
	verify := func(t *testing.T, c *http.Client, body string) (int, attendance.VerifyResult) {
		t.Helper()
		res := app.postJSON(t, c, "/qr/verify_attendance", body)
		var result attendance.VerifyResult
		if res.status == http.StatusOK || res.status == http.StatusBadRequest {
			require.NoError(t, json.Unmarshal([]byte(res.body), &result), res.body)
		}
		return res.status, result
	}

	t.Run("students cannot verify", func(t *testing.T) {
		status, _ := verify(t, student, `{"qr_data":"`+payload+`"}`)
		assert.Equal(t, http.StatusFound, status)
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for _, body := range []string{``, `{}`, `{"qr_data": 5}`, `not json`} {
			status, result := verify(t, organizer, body)
			assert.Equal(t, http.StatusBadRequest, status, body)
			assert.False(t, result.Success)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		status, result := verify(t, organizer, `{"qr_data":"garbage"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.False(t, result.Success)
		assert.Equal(t, "Invalid QR Code: malformed data.", result.Message)
	})

	t.Run("confirms attendance", func(t *testing.T) {
		status, result := verify(t, organizer, `{"qr_data":"`+payload+`"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, result.Success)
		assert.Equal(t, "Success! Attendance confirmed for sam at Workshop.", result.Message)

		reg, err := app.regs.Get(context.Background(), sam.ID, event.ID)
		require.NoError(t, err)
		assert.True(t, reg.Attended)
	})

	t.Run("unregister after attendance is refused", func(t *testing.T) {
		res := app.post(t, student, fmt.Sprintf("/unregister/%d", event.ID), nil)
		require.Equal(t, http.StatusFound, res.status)
		res = app.get(t, student, "/events")
		assert.Contains(t, res.body, attendance.MsgAlreadyAttended)
	})
}

func TestFeedbackFlow(t *testing.T) {
	app := newTestApp(t)
	_, olga := app.signedIn(t, "olga", models.RoleOrganizer)
	student, _ := app.signedIn(t, "sam", models.RoleStudent)
	event := app.event(t, "Workshop", olga, now.Add(24*time.Hour))
	path := fmt.Sprintf("/feedback/%d", event.ID)

	res := app.get(t, student, path)
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, studentDashboardPath, res.location)
	res = app.get(t, student, studentDashboardPath)
	assert.Contains(t, res.body, attendance.MsgFeedbackTooEarly)

	require.Equal(t, http.StatusFound, app.post(t, student, fmt.Sprintf("/register/%d", event.ID), nil).status)
	app.clock.Add(48 * time.Hour)

	res = app.get(t, student, path)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Feedback for Workshop")

	res = app.post(t, student, path, url.Values{"rating": {"9"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.body, "Rating must be between 1 and 5.")

	res = app.post(t, student, path, url.Values{"rating": {"5"}, "comment": {"Great"}})
	require.Equal(t, http.StatusFound, res.status)
	res = app.get(t, student, studentDashboardPath)
	assert.Contains(t, res.body, attendance.MsgFeedbackSubmitted)

	res = app.post(t, student, path, url.Values{"rating": {"4"}})
	require.Equal(t, http.StatusFound, res.status)
	res = app.get(t, student, studentDashboardPath)
	assert.Contains(t, res.body, attendance.MsgFeedbackDuplicate)
}

func TestDeleteUser(t *testing.T) {
	app := newTestApp(t)
	admin, root := app.signedIn(t, "root", models.RoleAdmin)
	sam := app.user(t, "sam", models.RoleStudent)

	res := app.get(t, admin, "/admin_dashboard")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "sam@example.com")

	res = app.post(t, admin, fmt.Sprintf("/delete_user/%d", root.ID), nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Contains(t, res.body, accounts.MsgDeleteSelf)

	res = app.post(t, admin, fmt.Sprintf("/delete_user/%d", sam.ID), nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/admin_dashboard", res.location)
	res = app.get(t, admin, "/admin_dashboard")
	assert.Contains(t, res.body, "User sam has been deleted successfully.")
}
