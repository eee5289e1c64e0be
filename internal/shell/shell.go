// Package shell turns HTTP requests into a SecurityContext and dispatches
// them to the enabled module that owns the route.
package shell

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/api"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/auth"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/csrf"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/session"
)

var (
	errUnknownModule = apperr.New(apperr.NotFound, "unknown module")
	errUnknownAction = apperr.New(apperr.NotFound, "unknown action")
	errNoHandler     = apperr.New(apperr.Configuration, "module has no handler")
)

type Params struct {
	fx.In

	Config   *config.AppConfig
	Log      *zap.Logger
	Auth     *auth.Service
	Sessions *session.Manager
	Vault    *remember.Vault
	CSRF     *csrf.Guard
	Loader   *capability.Loader
	Audit    audit.Recorder
	Modules  []Module `group:"modules"`
}

type Shell struct {
	log      *zap.Logger
	auth     *auth.Service
	sessions *session.Manager
	vault    *remember.Vault
	csrf     *csrf.Guard
	loader   *capability.Loader
	audit    audit.Recorder
	modules  map[string]Module
	proxies  []string
}

func New(p Params) *Shell {
	modules := make(map[string]Module, len(p.Modules))
	for _, m := range p.Modules {
		modules[m.Code()] = m
	}
	return &Shell{
		log:      p.Log,
		auth:     p.Auth,
		sessions: p.Sessions,
		vault:    p.Vault,
		csrf:     p.CSRF,
		loader:   p.Loader,
		audit:    p.Audit,
		modules:  modules,
		proxies:  p.Config.Server.TrustedProxies,
	}
}

// Handler builds the gin engine serving the admin area.
func (s *Shell) Handler() (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(s.proxies); err != nil {
		return nil, err
	}
	engine.Use(requestID(), requestLogger(s.log), recovery(s.log))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	adm := engine.Group("/adm")
	adm.GET("/:module", s.serve)
	adm.POST("/:module/:action", s.serve)
	return engine, nil
}

// serve runs the whole request pipeline. Cookies are finalized before the
// body is written.
func (s *Shell) serve(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("module")
	action := c.Param("action")

	if !capability.ValidCode(code) {
		s.reject(c, nil, errUnknownModule)
		return
	}

	sess := s.sessions.Start(ctx, cookie(c, s.sessions.CookieName()))
	client := remember.Client{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	secure := c.Request.TLS != nil

	sc, rotated, err := s.auth.Identify(ctx, sess, cookie(c, s.vault.CookieName()), client)
	if err != nil {
		s.reject(c, &auth.SecurityContext{Session: sess}, err)
		return
	}
	sc.Secure = secure
	sc.Module = code
	sc.Action = action
	sc.RequestID = c.GetString(requestIDKey)
	if rotated != nil {
		http.SetCookie(c.Writer, s.vault.Cookie(rotated, secure))
	}

	snap, err := s.loader.Snapshot(ctx)
	if err != nil {
		s.reject(c, sc, err)
		return
	}
	manifest, ok := snap.Module(code)
	if !ok || !manifest.Enabled {
		s.reject(c, sc, errUnknownModule)
		return
	}
	module, ok := s.modules[code]
	if !ok {
		s.reject(c, sc, errNoHandler)
		return
	}

	caps, err := s.loader.Activate(snap, code)
	if err != nil {
		s.reject(c, sc, err)
		return
	}
	sc.Caps = caps

	if c.Request.Method == http.MethodPost {
		submitted := c.PostForm(api.FieldCSRF)
		if submitted == "" {
			submitted = c.GetHeader(csrf.HeaderName)
		}
		if err := s.csrf.Validate(sess, submitted); err != nil {
			s.reject(c, sc, err)
			return
		}
	}

	if !api.IsPublic(code, action) {
		if err := acl.Require(allowedRoles(manifest), sc); err != nil {
			s.reject(c, sc, err)
			return
		}
	}

	var handle Action
	if action == "" {
		handle = module.View
	} else if handle, ok = module.Action(action); !ok {
		s.reject(c, sc, errUnknownAction)
		return
	}

	c.Request = c.Request.WithContext(auth.WithSecurityContext(ctx, sc))
	body, err := handle(&Request{C: c, Security: sc})
	if err != nil {
		// modules audit their own outcomes
		s.fail(c, sc, err)
		return
	}
	s.respond(c, sc, body)
}

func (s *Shell) respond(c *gin.Context, sc *auth.SecurityContext, body gin.H) {
	token, err := s.finalize(c, sc)
	if err != nil {
		s.log.Error("failed to finalize session", zap.Error(err), zap.String("request_id", sc.RequestID))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": apperr.PublicMessage(apperr.Internal)})
		return
	}

	out := gin.H{}
	for k, v := range body {
		out[k] = v
	}
	out["ok"] = true
	out["module"] = sc.Module
	out["csrf"] = token
	c.JSON(http.StatusOK, out)
}

// reject fails a request stopped by the pipeline itself and audits denials.
func (s *Shell) reject(c *gin.Context, sc *auth.SecurityContext, err error) {
	s.recordDenial(c, sc, apperr.KindOf(err), err)
	s.fail(c, sc, err)
}

// fail logs err with its detail and answers with the kind's public
// message only.
func (s *Shell) fail(c *gin.Context, sc *auth.SecurityContext, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)

	fields := []zap.Field{
		zap.String("kind", kind.String()),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	}
	switch kind {
	case apperr.Internal, apperr.Configuration:
		s.log.Error("request failed", fields...)
	case apperr.Csrf, apperr.Forbidden:
		s.log.Warn("request denied", fields...)
	default:
		s.log.Debug("request rejected", fields...)
	}

	body := gin.H{"ok": false, "error": apperr.PublicMessage(kind)}
	if sc != nil && sc.Session != nil {
		token, ferr := s.finalize(c, sc)
		if ferr != nil {
			s.log.Error("failed to finalize session", zap.Error(ferr))
		} else {
			body["csrf"] = token
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func (s *Shell) recordDenial(c *gin.Context, sc *auth.SecurityContext, kind apperr.Kind, err error) {
	if !sc.Authenticated() {
		return
	}
	var outcome, level string
	switch kind {
	case apperr.Csrf, apperr.Forbidden:
		outcome, level = audit.OutcomeDenied, audit.LevelWarn
	case apperr.Configuration:
		outcome, level = audit.OutcomeFailure, audit.LevelError
	default:
		return
	}

	uid := sc.UserID
	s.audit.Record(c.Request.Context(), audit.Event{
		UserID:    &uid,
		Role:      sc.Role().String(),
		Module:    sc.Module,
		Action:    actionName(sc.Action),
		Outcome:   outcome,
		Level:     level,
		Payload:   audit.Payload{"reason": kind.String(), "detail": detail(err)},
		IP:        sc.Client.IP,
		UserAgent: sc.Client.UserAgent,
	})
}

// finalize persists the session, sets its cookie and returns the CSRF
// token for the response.
func (s *Shell) finalize(c *gin.Context, sc *auth.SecurityContext) (string, error) {
	ctx := c.Request.Context()
	token, err := s.csrf.Token(sc.Session)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Save(ctx, sc.Session); err != nil {
		return "", err
	}
	ck, err := s.sessions.Cookie(sc.Session, sc.Secure)
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, ck)
	return token, nil
}

// allowedRoles maps manifest roles onto the closed role set. No roles
// means every role. Unknown names are dropped, so a list of only unknown
// names allows nobody.
func allowedRoles(m *capability.Manifest) []acl.Role {
	if len(m.Roles) == 0 {
		return acl.All
	}
	roles := make([]acl.Role, 0, len(m.Roles))
	for _, name := range m.Roles {
		if r, ok := acl.ParseRole(name); ok {
			roles = append(roles, r)
		}
	}
	return roles
}

func cookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func actionName(action string) string {
	if action == "" {
		return "view"
	}
	return action
}

func detail(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "error"
}
