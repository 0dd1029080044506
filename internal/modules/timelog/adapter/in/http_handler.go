package in

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"timelog/internal/modules/timelog/dto"
	timelogin "timelog/internal/modules/timelog/port/in"
)

// ErrorResponse is the body of every 4xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HTTPHandler exposes the log operations as JSON over HTTP.
type HTTPHandler struct {
	usecase timelogin.Usecase
}

func NewHTTPHandler(usecase timelogin.Usecase) HTTPHandler {
	return HTTPHandler{usecase: usecase}
}

// Register mounts the routes on e.
func (h HTTPHandler) Register(e *echo.Echo) {
	e.GET("/", h.health)
	e.POST("/projects", h.addProject)
	e.GET("/projects", h.listProjects)
	e.GET("/projects/:name", h.getProject)
	e.PATCH("/projects/:name/activate", h.activateProject)
	e.PATCH("/projects/:name/deactivate", h.deactivateProject)
	e.GET("/projects/:name/duration", h.projectDuration)
	e.PATCH("/rpc/deactivate_all", h.deactivateAll)
}

func (h HTTPHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, http.StatusOK)
}

func (h HTTPHandler) addProject(c echo.Context) error {
	name := c.QueryParam("name")
	if strings.TrimSpace(name) == "" {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: "query parameter name is required"})
	}
	if _, err := h.usecase.AddProject(c.Request().Context(), dto.AddProjectInput{Name: name}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, http.StatusCreated)
}

func (h HTTPHandler) activateProject(c echo.Context) error {
	if err := h.usecase.ActivateProject(c.Request().Context(), nameParam(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h HTTPHandler) deactivateProject(c echo.Context) error {
	if err := h.usecase.DeactivateProject(c.Request().Context(), nameParam(c)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h HTTPHandler) deactivateAll(c echo.Context) error {
	if err := h.usecase.DeactivateAllProjects(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h HTTPHandler) projectDuration(c echo.Context) error {
	hours, err := h.usecase.GetProjectDuration(c.Request().Context(), nameParam(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, hours)
}

func (h HTTPHandler) listProjects(c echo.Context) error {
	projects, err := h.usecase.ListProjects(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, projects)
}

func (h HTTPHandler) getProject(c echo.Context) error {
	project, err := h.usecase.GetProject(c.Request().Context(), nameParam(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

// nameParam returns the decoded :name segment. Echo routes on URL.RawPath
// when the request carries one (e.g. an escaped slash) and leaves the
// segment escaped; otherwise it routes on the already decoded URL.Path.
func nameParam(c echo.Context) string {
	raw := c.Param("name")
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// writeError maps domain errors to status codes. Anything else is left to
// echo's error handler and becomes a 500.
func writeError(c echo.Context, err error) error {
	var (
		exists  *timelogin.ProjectAlreadyExistsError
		missing *timelogin.ProjectDoesNotExistError
	)
	switch {
	case errors.As(err, &exists):
		return c.JSON(http.StatusConflict, ErrorResponse{Detail: err.Error()})
	case errors.As(err, &missing):
		return c.JSON(http.StatusNotFound, ErrorResponse{Detail: err.Error()})
	default:
		return err
	}
}
