package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/user-management/internal/model"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
	"gitlab.com/dirk.krummacker/user-management/internal/storage"
	pkgmodel "gitlab.com/dirk.krummacker/user-management/pkg/model"
)

const cookieName = "user_session"

const annJSON = `
	{
		"firstName": "Ann",
		"lastName": "Lee",
		"gender": "female",
		"email": "ann.lee@example.com",
		"phones": ["+1 415 555 0101", "+1 415 555 0102"],
		"birthDate": "1990-01-01"
	}
`

// stubFetcher returns a fixed list of remote users, or an error.
type stubFetcher struct {
	users []model.User
	err   error
}

func (f stubFetcher) FetchUsers(context.Context) ([]model.User, error) {
	return f.users, f.err
}

// initializeService sets up the service on the given storage and returns a handle to the gin
// engine against which requests can be executed.
func initializeService(provider storage.Provider, fetcher UserFetcher) *gin.Engine {
	return newTestService(provider, fetcher).Router()
}

// newTestService creates the service on the given storage with a fixed validator clock.
func newTestService(provider storage.Provider, fetcher UserFetcher) *Service {
	gin.SetMode(gin.ReleaseMode)
	logger, _ := test.NewNullLogger()
	return New(ServiceArgs{
		Validator: schema.NewValidator(func() time.Time {
			return time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
		}),
		Remote:        fetcher,
		Storage:       provider,
		Logger:        logger,
		SessionCookie: cookieName,
	})
}

// runTest executes the HTTP request with the specified arguments and returns the response. If
// a session cookie is given, it is sent along.
func runTest(router *gin.Engine, method string, url string, body string, session *http.Cookie) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		request.AddCookie(session)
	}
	router.ServeHTTP(recorder, request)
	return recorder
}

// sessionCookie returns the session cookie set by the response.
func sessionCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == cookieName {
			return cookie
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

// createAnn posts Ann Lee into a new session and returns the session cookie.
func createAnn(t *testing.T, router *gin.Engine) *http.Cookie {
	t.Helper()
	recorder := runTest(router, "POST", "/users/new", annJSON, nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	return sessionCookie(t, recorder)
}

func decodeUsers(t *testing.T, recorder *httptest.ResponseRecorder) pkgmodel.UserList {
	t.Helper()
	var list pkgmodel.UserList
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &list))
	return list
}

func TestHealth(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	recorder := runTest(router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestColumns(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	recorder := runTest(router, "GET", "/columns", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var columns []map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &columns))
	require.Len(t, columns, 8)
	assert.Equal(t, "firstName", columns[1]["key"])
	assert.Equal(t, "First Name", columns[1]["header"])
}

// TestGetRemoteUsers executes a GET request for the remote users, sorted by age in descending
// order. It expects the JSON for the list of users to be returned.
func TestGetRemoteUsers(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{users: []model.User{
		{Id: 1, FirstName: "Emily", Age: 28},
		{Id: 2, FirstName: "Michael", Age: 35},
		{Id: 3, FirstName: "Sophia", Age: 42},
	}})

	recorder := runTest(router, "GET", "/users?orderby=age&ascending=false&limit=2", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	list := decodeUsers(t, recorder)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Users, 2)
	assert.Equal(t, "Sophia", list.Users[0].FirstName)
	assert.Equal(t, "Michael", list.Users[1].FirstName)
}

func TestGetRemoteUsersFailure(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{err: errors.New("timeout")})
	recorder := runTest(router, "GET", "/users", "", nil)
	assert.Equal(t, http.StatusBadGateway, recorder.Code)
}

func TestGetRemoteUsersHugeLimit(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{users: []model.User{
		{Id: 1, FirstName: "Emily"},
		{Id: 2, FirstName: "Michael"},
	}})

	recorder := runTest(router, "GET", "/users?limit=9223372036854775807&offset=1", "", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	list := decodeUsers(t, recorder)
	require.Len(t, list.Users, 1)
	assert.Equal(t, 2, list.Users[0].Id)
}

// TestGetUsersInvalidParameters expects invalid URL parameters to be answered with BAD REQUEST.
func TestGetUsersInvalidParameters(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	for _, url := range []string{
		"/users?limit=0",
		"/users?limit=ten",
		"/users?offset=-1",
		"/users?orderby=password",
		"/users?ascending=maybe",
		"/users/new?orderby=actions",
	} {
		recorder := runTest(router, "GET", url, "", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, url)
	}
}

// TestPost creates a user and expects the saved user with the first id of the session, the
// derived age and only the primary phone number.
func TestPost(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})

	recorder := runTest(router, "POST", "/users/new", annJSON, nil)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, pkgmodel.User{
		Id:        1,
		FirstName: "Ann",
		LastName:  "Lee",
		Age:       34,
		Email:     "ann.lee@example.com",
		Phone:     "+1 415 555 0101",
		BirthDate: "1990-01-01",
	}, u)
	assert.NotContains(t, recorder.Body.String(), "0102")
	assert.NotContains(t, recorder.Body.String(), "female")

	// the user is listed in its session only
	session := sessionCookie(t, recorder)
	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	assert.Equal(t, 1, list.Total)
	assert.Empty(t, decodeUsers(t, runTest(router, "GET", "/users/new", "", nil)).Users)
}

func TestPostIdsIncrease(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)
	for _, expected := range []float64{2, 3} {
		recorder := runTest(router, "POST", "/users/new", annJSON, session)
		assert.Equal(t, http.StatusCreated, recorder.Code)
		var body map[string]interface{}
		json.Unmarshal(recorder.Body.Bytes(), &body)
		assert.Equal(t, expected, body["id"])
	}
}

// TestPostInvalid expects invalid input to be answered with the field errors and nothing to be
// saved.
func TestPostInvalid(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})

	recorder := runTest(router, "POST", "/users/new", `
		{
			"firstName": "Ann",
			"lastName": "Lee",
			"email": "not-an-email",
			"phones": ["+1 415 555 0101"],
			"birthDate": "1990-01-01"
		}
	`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	var body pkgmodel.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"email": "Invalid email format"}, body.Errors)

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", sessionCookie(t, recorder)))
	assert.Empty(t, list.Users)
}

func TestPostInvalidJSON(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	recorder := runTest(router, "POST", "/users/new", `{"firstName": `, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGet(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)

	recorder := runTest(router, "GET", "/users/new/1", "", session)
	assert.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]interface{}
	json.Unmarshal(recorder.Body.Bytes(), &body)
	assert.Equal(t, 1.0, body["id"])
	assert.Equal(t, "Ann", body["firstName"])

	assert.Equal(t, http.StatusNotFound, runTest(router, "GET", "/users/new/9999", "", session).Code)
	assert.Equal(t, http.StatusNotFound, runTest(router, "GET", "/users/new/invalid", "", session).Code)
}

// TestPut updates the phone number of a user and expects everything else to stay.
func TestPut(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)

	recorder := runTest(router, "PUT", "/users/new/1", `{"phones": ["+49 1234567890"]}`, session)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, 1, u.Id)
	assert.Equal(t, "+49 1234567890", u.Phone)
	assert.Equal(t, "Ann", u.FirstName)
	assert.Equal(t, 34, u.Age)

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "+49 1234567890", list.Users[0].Phone)
}

func TestPutInvalid(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)

	recorder := runTest(router, "PUT", "/users/new/1", `{"birthDate": "2030-01-01"}`, session)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	var body pkgmodel.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "Birth date cannot be in the future", body.Errors["birthDate"])

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	assert.Equal(t, "1990-01-01", list.Users[0].BirthDate)
}

func TestPutUnknownID(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)
	assert.Equal(t, http.StatusNotFound, runTest(router, "PUT", "/users/new/2", `{"firstName": "Bob"}`, session).Code)
	assert.Equal(t, http.StatusNotFound, runTest(router, "PUT", "/users/new/x", `{"firstName": "Bob"}`, session).Code)
}

// TestDelete removes one of two users and expects the other one to remain.
func TestDelete(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)
	runTest(router, "POST", "/users/new", annJSON, session)

	recorder := runTest(router, "DELETE", "/users/new/1", "", session)
	assert.Equal(t, http.StatusOK, recorder.Code)

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	require.Len(t, list.Users, 1)
	assert.Equal(t, 2, list.Users[0].Id)

	assert.Equal(t, http.StatusNotFound, runTest(router, "DELETE", "/users/new/1", "", session).Code)
}

func TestClear(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)

	assert.Equal(t, http.StatusOK, runTest(router, "DELETE", "/users/new", "", session).Code)
	assert.Empty(t, decodeUsers(t, runTest(router, "GET", "/users/new", "", session)).Users)

	// clearing does not reset the id counter
	recorder := runTest(router, "POST", "/users/new", annJSON, session)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, 2, u.Id)
}

func TestValidateField(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	tests := []struct {
		body    string
		valid   bool
		message string
	}{
		{`{"field": "email", "value": "ann@"}`, false, "Invalid email format"},
		{`{"field": "email", "value": "ann@example.com"}`, true, ""},
		{`{"field": "age", "value": 121}`, false, "Age must be less than 120"},
		{`{"field": "age", "value": 42}`, true, ""},
		{`{"field": "gender", "value": "other"}`, true, ""},
	}
	for _, tc := range tests {
		recorder := runTest(router, "POST", "/users/validate", tc.body, nil)
		assert.Equal(t, http.StatusOK, recorder.Code, tc.body)
		var response pkgmodel.ValidateResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.Equal(t, tc.valid, response.Valid, tc.body)
		assert.Equal(t, tc.message, response.Message, tc.body)
	}
	assert.Equal(t, http.StatusBadRequest, runTest(router, "POST", "/users/validate", `{}`, nil).Code)
}

// TestSessionSurvivesRestart expects a new service instance on the same session storage to
// continue the session's users and ids.
func TestSessionSurvivesRestart(t *testing.T) {
	provider := storage.NewMemory()
	session := createAnn(t, initializeService(provider, stubFetcher{}))

	router := initializeService(provider, stubFetcher{})
	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Ann", list.Users[0].FirstName)

	recorder := runTest(router, "POST", "/users/new", annJSON, session)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, 2, u.Id)
}

// TestEndSession expects all data of a session to be gone after it ended.
func TestEndSession(t *testing.T) {
	router := initializeService(storage.NewMemory(), stubFetcher{})
	session := createAnn(t, router)

	assert.Equal(t, http.StatusOK, runTest(router, "DELETE", "/session", "", session).Code)

	assert.Empty(t, decodeUsers(t, runTest(router, "GET", "/users/new", "", session)).Users)
	recorder := runTest(router, "POST", "/users/new", annJSON, session)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, 1, u.Id)
}

// TestIdleSessionIsEvicted expects an idle session to be dropped from memory and to get its
// users back from the session storage on the next request.
func TestIdleSessionIsEvicted(t *testing.T) {
	s := newTestService(storage.NewMemory(), stubFetcher{})
	clock := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	router := s.Router()
	session := createAnn(t, router)

	clock = clock.Add(DefaultSessionIdle + time.Minute)
	runTest(router, "GET", "/users/new", "", nil)

	s.mu.Lock()
	_, known := s.sessions[session.Value]
	registered := len(s.sessions)
	s.mu.Unlock()
	assert.False(t, known)
	assert.Equal(t, 1, registered)

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Ann", list.Users[0].FirstName)
}

func TestRecentSessionIsKept(t *testing.T) {
	s := newTestService(storage.NewMemory(), stubFetcher{})
	clock := time.Date(2024, time.June, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	router := s.Router()
	session := createAnn(t, router)

	clock = clock.Add(DefaultSessionIdle - time.Minute)
	runTest(router, "GET", "/users/new", "", session)
	clock = clock.Add(DefaultSessionIdle - time.Minute)
	runTest(router, "GET", "/users/new", "", nil)

	s.mu.Lock()
	_, known := s.sessions[session.Value]
	s.mu.Unlock()
	assert.True(t, known)
}

// TestRequestWaitingOnEndedSession expects a request that waited for the session lock while
// the session ended to start from an empty session instead of restoring the ended one.
func TestRequestWaitingOnEndedSession(t *testing.T) {
	provider := storage.NewMemory()
	s := newTestService(provider, stubFetcher{})
	router := s.Router()
	session := createAnn(t, router)

	s.mu.Lock()
	sess := s.sessions[session.Value]
	s.mu.Unlock()
	sess.mu.Lock()

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- runTest(router, "POST", "/users/new", strings.Replace(annJSON, "Ann", "Bob", 1), session)
	}()
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return sess.active == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, provider.EndSession(context.Background(), sess.id))
	s.end(sess)
	sess.mu.Unlock()

	recorder := <-done
	assert.Equal(t, http.StatusCreated, recorder.Code)
	var u pkgmodel.User
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &u))
	assert.Equal(t, 1, u.Id)

	list := decodeUsers(t, runTest(router, "GET", "/users/new", "", session))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Bob", list.Users[0].FirstName)
}
