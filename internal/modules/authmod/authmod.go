// Package authmod serves the auth module: login, logout and password reset.
package authmod

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/api"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/auth"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/reset"
	"github.com/elskow/backoffice/internal/shell"
)

type Module struct {
	shell.ActionMap
	log *zap.Logger
}

func New(log *zap.Logger) *Module {
	m := &Module{log: log}
	m.ActionMap = shell.ActionMap{
		api.AuthLogin:        m.login,
		api.AuthLogout:       m.logout,
		api.AuthResetRequest: m.resetRequest,
		api.AuthResetApply:   m.resetApply,
	}
	return m
}

func (m *Module) Code() string {
	return api.ModuleAuth
}

func (m *Module) View(req *shell.Request) (gin.H, error) {
	sc := req.Security
	out := gin.H{"authenticated": sc.Authenticated()}
	if sc.Authenticated() {
		out["user"] = gin.H{
			"id":   sc.User.ID,
			"name": sc.User.Name,
			"role": sc.Role(),
		}
	}
	return out, nil
}

func (m *Module) login(req *shell.Request) (gin.H, error) {
	caps := req.Caps()
	svc, err := capability.Get[*auth.Service](caps, capability.CoreAuth)
	if err != nil {
		return nil, err
	}
	vault, err := capability.Get[*remember.Vault](caps, capability.CoreRemember)
	if err != nil {
		return nil, err
	}
	rec, err := capability.Get[audit.Recorder](caps, capability.CoreAudit)
	if err != nil {
		return nil, err
	}

	sc := req.Security
	identifier := req.Form(api.FieldIdentifier)
	res, err := svc.Login(req.Ctx(), sc.Session, identifier, req.RawForm(api.FieldSecret), sc.Client)
	if err != nil {
		ev := req.Event(api.AuthLogin, audit.OutcomeFailure, audit.LevelWarn)
		ev.Payload = audit.Payload{"identifier": credential.NormalizeIdentifier(identifier)}
		rec.Record(req.Ctx(), ev)
		return nil, err
	}
	req.SetCookie(vault.Cookie(res.Remember, sc.Secure))

	ev := req.Event(api.AuthLogin, audit.OutcomeSuccess, audit.LevelInfo)
	uid := res.UserID
	ev.UserID = &uid
	ev.Entity, ev.EntityID = "user", formatID(uid)
	rec.Record(req.Ctx(), ev)

	return gin.H{"user_id": uid}, nil
}

func (m *Module) logout(req *shell.Request) (gin.H, error) {
	caps := req.Caps()
	svc, err := capability.Get[*auth.Service](caps, capability.CoreAuth)
	if err != nil {
		return nil, err
	}
	vault, err := capability.Get[*remember.Vault](caps, capability.CoreRemember)
	if err != nil {
		return nil, err
	}
	rec, err := capability.Get[audit.Recorder](caps, capability.CoreAudit)
	if err != nil {
		return nil, err
	}

	sc := req.Security
	ev := req.Event(api.AuthLogout, audit.OutcomeSuccess, audit.LevelInfo)
	if err := svc.Logout(req.Ctx(), sc.Session, req.Cookie(vault.CookieName())); err != nil {
		return nil, err
	}
	req.SetCookie(vault.ClearCookie(sc.Secure))
	if ev.UserID != nil {
		rec.Record(req.Ctx(), ev)
	}
	return gin.H{}, nil
}

// resetRequest answers the same way whether or not the email belongs to
// an active user.
func (m *Module) resetRequest(req *shell.Request) (gin.H, error) {
	caps := req.Caps()
	ledger, err := capability.Get[*reset.Ledger](caps, capability.CoreReset)
	if err != nil {
		return nil, err
	}
	notifier, err := capability.Get[reset.Notifier](caps, capability.CoreNotify)
	if err != nil {
		return nil, err
	}
	rec, err := capability.Get[audit.Recorder](caps, capability.CoreAudit)
	if err != nil {
		return nil, err
	}

	email := credential.NormalizeEmail(req.Form(api.FieldEmail))
	if !credential.ValidEmail(email) {
		m.log.Debug("reset requested for malformed email", zap.String("request_id", req.Security.RequestID))
		return gin.H{"sent": true}, nil
	}

	issued, err := ledger.Create(req.Ctx(), email)
	if err != nil {
		return nil, err
	}
	if issued != nil {
		if err := notifier.NotifyReset(req.Ctx(), issued); err != nil {
			m.log.Error("failed to deliver reset link", zap.Int64("user_id", issued.UserID), zap.Error(err))
		}
		ev := req.Event(api.AuthResetRequest, audit.OutcomeSuccess, audit.LevelInfo)
		ev.Entity, ev.EntityID = "user", formatID(issued.UserID)
		rec.Record(req.Ctx(), ev)
	}
	return gin.H{"sent": true}, nil
}

func (m *Module) resetApply(req *shell.Request) (gin.H, error) {
	caps := req.Caps()
	ledger, err := capability.Get[*reset.Ledger](caps, capability.CoreReset)
	if err != nil {
		return nil, err
	}
	rec, err := capability.Get[audit.Recorder](caps, capability.CoreAudit)
	if err != nil {
		return nil, err
	}

	uid, err := ledger.Redeem(req.Ctx(), req.Form(api.FieldToken), req.RawForm(api.FieldPassword))
	if err != nil {
		rec.Record(req.Ctx(), req.Event(api.AuthResetApply, audit.OutcomeFailure, audit.LevelWarn))
		return nil, err
	}

	ev := req.Event(api.AuthResetApply, audit.OutcomeSuccess, audit.LevelInfo)
	ev.Entity, ev.EntityID = "user", formatID(uid)
	rec.Record(req.Ctx(), ev)
	return gin.H{"reset": true}, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
