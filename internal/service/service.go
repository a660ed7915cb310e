package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/user-management/internal/form"
	"gitlab.com/dirk.krummacker/user-management/internal/model"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
	"gitlab.com/dirk.krummacker/user-management/internal/storage"
	"gitlab.com/dirk.krummacker/user-management/internal/table"
	pkgmodel "gitlab.com/dirk.krummacker/user-management/pkg/model"
)

// UserFetcher reads the remote user list.
type UserFetcher interface {
	FetchUsers(ctx context.Context) ([]model.User, error)
}

// ServiceArgs contains the arguments for New. All fields but GinLogging and SessionIdle are
// mandatory.
type ServiceArgs struct {
	// Validator checks users and single fields.
	Validator *schema.Validator

	// Remote provides the read-only list of remote users.
	Remote UserFetcher

	// Storage provides the session storage of every client session.
	Storage storage.Provider

	// Logger receives all log output of the service.
	Logger logrus.FieldLogger

	// SessionCookie is the name of the cookie identifying a client session.
	SessionCookie string

	// GinLogging turns on gin's request logging.
	GinLogging bool

	// SessionIdle is how long an unused session is kept in memory. Zero means
	// DefaultSessionIdle.
	SessionIdle time.Duration
}

// Service is the REST API of the user management. Every client session has its own list of
// newly added users, kept in the session storage.
type Service struct {
	validator  *schema.Validator
	remote     UserFetcher
	storage    storage.Provider
	log        logrus.FieldLogger
	cookie     string
	ginLogging bool

	mu        sync.Mutex
	sessions  map[string]*session
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New creates the service.
func New(args ServiceArgs) *Service {
	idle := args.SessionIdle
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Service{
		validator:  args.Validator,
		remote:     args.Remote,
		storage:    args.Storage,
		log:        args.Logger,
		cookie:     args.SessionCookie,
		ginLogging: args.GinLogging,
		sessions:   make(map[string]*session),
		idle:       idle,
		now:        time.Now,
	}
}

// Router initializes the REST API router and registers all endpoints.
func (s *Service) Router() *gin.Engine {
	var router *gin.Engine
	if s.ginLogging {
		router = gin.Default()
	} else {
		s.log.Info("Turning off HTTP request logging.")
		router = gin.New()
		router.Use(gin.Recovery())
	}
	router.GET("/health", health)
	router.GET("/columns", columns)
	router.GET("/users", s.findRemoteUsers)
	router.POST("/users/validate", s.validateField)

	newUsers := router.Group("/users/new", s.withSession)
	newUsers.GET("", s.findNewUsers)
	newUsers.POST("", s.createUser)
	newUsers.DELETE("", s.clearUsers)
	newUsers.GET("/:id", s.findNewUserByID)
	newUsers.PUT("/:id", s.updateUserByID)
	newUsers.DELETE("/:id", s.deleteUserByID)

	router.DELETE("/session", s.withSession, s.endSession)
	return router
}

// health responds with 200 as long as the service is running.
//
// Example REST API call:
//
//	> curl http://localhost:8080/health
func health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// columns responds with the column descriptor of the user table.
//
// Example REST API call:
//
//	> curl http://localhost:8080/columns
func columns(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, table.Columns)
}

// findRemoteUsers responds with a page of the users read from the remote API. It accepts the
// URL parameters described at parseQuery.
//
// REST API calls:
//
//	> curl "http://localhost:8080/users"
//	> curl "http://localhost:8080/users?firstname=em&orderby=age&ascending=false&limit=10"
func (s *Service) findRemoteUsers(c *gin.Context) {
	query, success := parseQuery(c)
	if !success {
		return
	}
	users, err := s.remote.FetchUsers(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("error fetching remote users")
		c.AbortWithStatusJSON(http.StatusBadGateway, pkgmodel.ErrorResponse{Message: "could not fetch users"})
		return
	}
	c.IndentedJSON(http.StatusOK, toUserList(table.Apply(users, query)))
}

// findNewUsers responds with a page of the users added in the current session. Without the
// 'orderby' parameter the users are listed in the order they were added.
//
// REST API call:
//
//	> curl --cookie "user_session=..." "http://localhost:8080/users/new?limit=20&offset=20"
func (s *Service) findNewUsers(c *gin.Context) {
	query, success := parseQuery(c)
	if !success {
		return
	}
	sess := currentSession(c)
	c.IndentedJSON(http.StatusOK, toUserList(table.Apply(sess.store.Users(), query)))
}

// createUser submits the add form with the values of the request's JSON. The new user gets
// the next id of the session and is appended to the session's users. Only the first of the
// phone numbers is saved. If the birth date is given, the age is derived from it.
//
// Example REST API call:
//
//	> curl http://localhost:8080/users/new --request "POST" --include --header "Content-Type: application/json" --data '{"firstName": "Ann", "lastName": "Lee", "gender": "female", "email": "ann.lee@example.com", "phones": ["+1 415 555 0101"], "birthDate": "1990-01-01"}'
func (s *Service) createUser(c *gin.Context) {
	var input pkgmodel.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid JSON"})
		return
	}
	sess := currentSession(c)
	controller := form.NewController(form.ControllerArgs{
		Validator: s.validator,
		IDs:       sess.ids,
		OnSubmit:  sess.store.Add,
	})
	controller.Open()
	controller.Apply(toFormInput(input))
	s.submit(c, controller, http.StatusCreated)
}

// findNewUserByID responds with the user of the current session whose id matches the id
// parameter of the request URL.
//
// Example REST API call:
//
//	> curl http://localhost:8080/users/new/3
func (s *Service) findNewUserByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	u, err := currentSession(c).store.Get(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, pkgmodel.ErrorResponse{Message: "user not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, pkgmodel.User(u))
}

// updateUserByID submits the edit form of the user whose id matches the id parameter of the
// request URL. Values missing from the JSON keep their current value; the id never changes.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/users/new/3 --request "PUT" --include --header "Content-Type: application/json" --data '{"phones": ["+49 1234567890"]}'
//	> curl http://localhost:8080/users/new/3 --request "PUT" --include --header "Content-Type: application/json" --data '{"birthDate": "1972-06-06"}'
func (s *Service) updateUserByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	sess := currentSession(c)
	existing, err := sess.store.Get(id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, pkgmodel.ErrorResponse{Message: "user not found"})
		return
	}
	var input pkgmodel.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid JSON"})
		return
	}
	controller := form.NewController(form.ControllerArgs{
		Validator: s.validator,
		IDs:       sess.ids,
		Initial:   &existing,
		OnSubmit:  sess.store.Update,
	})
	controller.Open()
	controller.Apply(toFormInput(input))
	s.submit(c, controller, http.StatusOK)
}

// deleteUserByID removes the user whose id matches the id parameter of the request URL from
// the current session.
//
// Example REST API call:
//
//	> curl http://localhost:8080/users/new/3 --request "DELETE"
func (s *Service) deleteUserByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	sess := currentSession(c)
	if _, err := sess.store.Get(id); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, pkgmodel.ErrorResponse{Message: "user not found"})
		return
	}
	sess.store.Remove(c.Request.Context(), id)
	c.IndentedJSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// clearUsers removes all users of the current session.
//
// Example REST API call:
//
//	> curl http://localhost:8080/users/new --request "DELETE"
func (s *Service) clearUsers(c *gin.Context) {
	currentSession(c).store.Clear(c.Request.Context())
	c.IndentedJSON(http.StatusOK, gin.H{"message": "users cleared"})
}

// validateField checks a single form field, as done when the operator leaves the field.
// Fields without rules of their own are always valid.
//
// Example REST API call:
//
//	> curl http://localhost:8080/users/validate --request "POST" --header "Content-Type: application/json" --data '{"field": "email", "value": "ann@"}'
func (s *Service) validateField(c *gin.Context) {
	var request pkgmodel.ValidateRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Field == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Message: "invalid JSON"})
		return
	}
	if err := s.validator.ValidateField(request.Field, request.Value); err != nil {
		c.IndentedJSON(http.StatusOK, pkgmodel.ValidateResponse{Valid: false, Message: err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, pkgmodel.ValidateResponse{Valid: true})
}

// endSession deletes all data of the current session, including the id counter.
//
// Example REST API call:
//
//	> curl http://localhost:8080/session --request "DELETE"
func (s *Service) endSession(c *gin.Context) {
	sess := currentSession(c)
	if err := s.storage.EndSession(c.Request.Context(), sess.id); err != nil {
		s.log.WithError(err).WithField("session", sess.id).Error("error ending session")
		c.AbortWithStatusJSON(http.StatusInternalServerError, pkgmodel.ErrorResponse{Message: "could not end session"})
		return
	}
	s.end(sess)
	c.SetCookie(s.cookie, "", -1, "/", "", false, true)
	c.IndentedJSON(http.StatusOK, gin.H{"message": "session ended"})
}

// submit submits the form and responds with the saved user, or with the field errors.
func (s *Service) submit(c *gin.Context, controller *form.Controller, status int) {
	u, err := controller.Submit(c.Request.Context())
	var fieldErrors schema.FieldErrors
	switch {
	case errors.As(err, &fieldErrors):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, pkgmodel.ErrorResponse{
			Message: "validation failed",
			Errors:  controller.Errors(),
		})
	case err != nil:
		s.log.WithError(err).Error("error submitting user")
		c.AbortWithStatusJSON(http.StatusInternalServerError, pkgmodel.ErrorResponse{Message: "could not save user"})
	default:
		c.IndentedJSON(status, pkgmodel.User(u))
	}
}

// parseID inspects the id parameter of the request URL.
func parseID(c *gin.Context) (id int, success bool) {
	id, errConv := strconv.Atoi(c.Param("id"))
	if errConv != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, pkgmodel.ErrorResponse{Message: "invalid id parameter"})
		return 0, false
	}
	return id, true
}

func toFormInput(in pkgmodel.UserInput) form.Input {
	return form.Input{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    in.Gender,
		Email:     in.Email,
		Phones:    in.Phones,
		BirthDate: in.BirthDate,
		Age:       in.Age,
	}
}

func toUserList(page table.Page) pkgmodel.UserList {
	users := make([]pkgmodel.User, 0, len(page.Users))
	for _, u := range page.Users {
		users = append(users, pkgmodel.User(u))
	}
	return pkgmodel.UserList{Users: users, Total: page.Total}
}
