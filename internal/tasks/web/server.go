package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"overseer/internal/accounts"
	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/pkg/logx"
)

const (
	sessionName       = "overseer-session"
	sessionKeyAccount = "session"
)

// accountsAPI is the slice of the accounts package the handlers need,
// injected so tests run without postgres.
type accountsAPI interface {
	LoginSession(ctx context.Context, login, password string, validFor time.Duration) (accounts.Session, error)
	ValidateSession(ctx context.Context, s accounts.Session) error
	CreateAccount(ctx context.Context, login, password string) (accounts.Account, error)
	DeleteSession(ctx context.Context, s accounts.Session) error
	PruneSessions(ctx context.Context) (int64, error)
}

type server struct {
	echo  *echo.Echo
	cfg   config.WebConfig
	tmo   timeouts
	store *sessions.CookieStore
	acct  accountsAPI
	sys   *host.System
	log   logx.Logger

	limiter *ipLimiter
	started time.Time
}

func newServer(cfg config.WebConfig, tmo timeouts, acct accountsAPI, sys *host.System, log logx.Logger) (*server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	store := sessions.NewCookieStore([]byte(cfg.Sessions.CookieSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(tmo.maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}

	perMin := cfg.LoginRatePerMin
	if perMin <= 0 {
		perMin = 10
	}

	s := &server{
		echo:    e,
		cfg:     cfg,
		tmo:     tmo,
		store:   store,
		acct:    acct,
		sys:     sys,
		log:     log,
		limiter: newIPLimiter(perMin),
		started: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *server) registerRoutes() {
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/healthz", s.handleHealthz)

	root := strings.TrimRight(s.cfg.URLRoot, "/")
	g := s.echo.Group(root)
	g.POST("/login", s.handleLogin)
	g.POST("/logout", s.handleLogout)
	g.GET("/me", s.handleMe)
	g.POST("/accounts", s.handleCreateAccount)
	g.GET("/status", s.handleStatus)
}

func (s *server) start(addr string) error {
	s.echo.Server.ReadTimeout = s.tmo.read
	s.echo.Server.WriteTimeout = s.tmo.write
	s.echo.Server.IdleTimeout = s.tmo.idle
	return s.echo.Start(addr)
}

func (s *server) shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logx.Field{
				logx.String("method", v.Method),
				logx.String("uri", v.URI),
				logx.Int("status", v.Status),
				logx.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logx.Err(v.Error))
				s.log.Warn("request", fields...)
				return nil
			}
			s.log.Debug("request", fields...)
			return nil
		},
	})
}

// ---- handlers ----

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (s *server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *server) handleLogin(c echo.Context) error {
	if !s.limiter.allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sess, err := s.acct.LoginSession(c.Request().Context(), req.Login, req.Password, s.tmo.maxAge)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidLogin) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid login or password"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	cookie, _ := s.store.Get(c.Request(), sessionName)
	cookie.Values[sessionKeyAccount] = sess.String()
	if err := cookie.Save(c.Request(), c.Response()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "session save failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"account_id": sess.ID.String()})
}

func (s *server) handleLogout(c echo.Context) error {
	sess, ok := s.sessionFrom(c)
	if ok {
		if err := s.acct.DeleteSession(c.Request().Context(), sess); err != nil {
			s.log.Warn("session revoke failed", logx.Err(err))
		}
	}
	cookie, _ := s.store.Get(c.Request(), sessionName)
	cookie.Options.MaxAge = -1
	_ = cookie.Save(c.Request(), c.Response())
	return c.NoContent(http.StatusNoContent)
}

func (s *server) handleMe(c echo.Context) error {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not logged in"})
	}
	if err := s.acct.ValidateSession(c.Request().Context(), sess); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "session expired"})
	}
	return c.JSON(http.StatusOK, map[string]string{"account_id": sess.ID.String()})
}

func (s *server) handleCreateAccount(c echo.Context) error {
	sess, ok := s.sessionFrom(c)
	if !ok || s.acct.ValidateSession(c.Request().Context(), sess) != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not logged in"})
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	acct, err := s.acct.CreateAccount(c.Request().Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, accounts.ErrWeakPassword):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, accounts.ErrAccountExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "account creation failed"})
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"account_id": acct.ID.String(),
		"login":      acct.Login,
	})
}

func (s *server) handleStatus(c echo.Context) error {
	out := map[string]any{
		"uptime":   time.Since(s.started).Truncate(time.Second).String(),
		"shutdown": s.sys.Bus.Signaled(),
	}
	if s.sys.Audit != nil {
		if events, err := s.sys.Audit.Recent(c.Request().Context(), 20); err == nil {
			out["recent_events"] = events
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *server) sessionFrom(c echo.Context) (accounts.Session, bool) {
	cookie, err := s.store.Get(c.Request(), sessionName)
	if err != nil {
		return accounts.Session{}, false
	}
	raw, _ := cookie.Values[sessionKeyAccount].(string)
	if raw == "" {
		return accounts.Session{}, false
	}
	sess, err := accounts.ParseSession(raw)
	if err != nil {
		return accounts.Session{}, false
	}
	return sess, true
}

func (s *server) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.acct.PruneSessions(ctx)
	if err != nil {
		s.log.Warn("session prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("pruned expired sessions", logx.Int64("count", n))
	}
}
