package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/focalpics/focal/internal/database"
	"github.com/focalpics/focal/internal/server/middlewares"
	"github.com/focalpics/focal/internal/server/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultCookieName is the name of the cookie holding the bearer token.
const DefaultCookieName = "token"

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version  string
	Database database.Client
	Sessions session.Manager
	// Cookie params
	CookieName   string
	CookieSecure bool
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	if ctrl.CookieName == "" {
		ctrl.CookieName = DefaultCookieName
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	router := engine.Group("")
	restricted := router.Group("")
	restricted.Use(middlewares.Session(ctrl.Sessions, ctrl.CookieName))

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// session handlers
	//
	sess := &sess{
		sessions:     ctrl.Sessions,
		cookieName:   ctrl.CookieName,
		cookieSecure: ctrl.CookieSecure,
	}
	router.POST("/session", sess.Create)
	restricted.GET("/session", sess.Show)
	router.DELETE("/session", sess.Delete)

	//
	// account handlers
	//
	account := &account{
		db: ctrl.Database,
	}
	restricted.PUT("/account", account.Create)
	restricted.GET("/account", account.Show)
	restricted.DELETE("/account", account.Delete)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

func currentSession(c echo.Context) *session.Session {
	s, ok := c.Get(middlewares.CurrentSessionContextKey).(*session.Session)
	if ok {
		return s
	}
	return nil
}
