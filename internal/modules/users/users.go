// Package users manages back-office accounts: creation, profile and
// status updates, deletion and role assignment.
package users

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/api"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/shell"
)

var errBadID = apperr.New(apperr.InvalidInput, "invalid user id")

type Module struct {
	shell.ActionMap
}

func NewModule() *Module {
	m := &Module{}
	m.ActionMap = shell.ActionMap{
		api.UsersCreate:  m.create,
		api.UsersUpdate:  m.update,
		api.UsersDelete:  m.delete,
		api.UsersSetRole: m.setRole,
	}
	return m
}

func (m *Module) Code() string {
	return api.ModuleUsers
}

// View tells the client which actions and roles the caller may use.
func (m *Module) View(req *shell.Request) (gin.H, error) {
	admin := req.Security.Role() == acl.RoleAdmin
	assignable := []acl.Role{acl.RoleUser}
	if admin {
		assignable = acl.All
	}
	return gin.H{
		"can_delete":   admin,
		"can_set_role": admin,
		"roles":        assignable,
	}, nil
}

func (m *Module) create(req *shell.Request) (gin.H, error) {
	svc, rec, err := services(req)
	if err != nil {
		return nil, err
	}

	user, err := svc.Create(req.Ctx(), actor(req), CreateInput{
		Name:     req.Form(api.FieldName),
		Email:    req.Form(api.FieldEmail),
		Phone:    req.Form(api.FieldPhone),
		Password: req.RawForm(api.FieldPassword),
		Role:     req.Form(api.FieldRole),
	})
	if err != nil {
		record(req, rec, api.UsersCreate, "", err, nil)
		return nil, err
	}
	record(req, rec, api.UsersCreate, formatID(user.ID), nil, nil)
	return gin.H{"id": user.ID}, nil
}

func (m *Module) update(req *shell.Request) (gin.H, error) {
	svc, rec, err := services(req)
	if err != nil {
		return nil, err
	}
	id, err := formID(req)
	if err != nil {
		return nil, err
	}

	changes, err := svc.Update(req.Ctx(), actor(req), UpdateInput{
		ID:       id,
		Name:     req.Form(api.FieldName),
		Email:    req.Form(api.FieldEmail),
		Phone:    req.Form(api.FieldPhone),
		Password: req.RawForm(api.FieldPassword),
		Status:   req.Form(api.FieldStatus),
	})
	if err != nil {
		record(req, rec, api.UsersUpdate, formatID(id), err, nil)
		return nil, err
	}
	record(req, rec, api.UsersUpdate, formatID(id), nil, audit.Payload{
		"password_changed": changes.PasswordChanged,
		"status_changed":   changes.StatusChanged,
		"sessions_revoked": changes.Revoked,
	})
	return gin.H{"id": id, "sessions_revoked": changes.Revoked}, nil
}

func (m *Module) delete(req *shell.Request) (gin.H, error) {
	svc, rec, err := services(req)
	if err != nil {
		return nil, err
	}
	id, err := formID(req)
	if err != nil {
		return nil, err
	}

	if err := svc.Delete(req.Ctx(), actor(req), id); err != nil {
		record(req, rec, api.UsersDelete, formatID(id), err, nil)
		return nil, err
	}
	record(req, rec, api.UsersDelete, formatID(id), nil, nil)
	return gin.H{"id": id}, nil
}

func (m *Module) setRole(req *shell.Request) (gin.H, error) {
	svc, rec, err := services(req)
	if err != nil {
		return nil, err
	}
	id, err := formID(req)
	if err != nil {
		return nil, err
	}

	role, err := svc.SetRole(req.Ctx(), actor(req), id, req.Form(api.FieldRole))
	if err != nil {
		record(req, rec, api.UsersSetRole, formatID(id), err, nil)
		return nil, err
	}
	record(req, rec, api.UsersSetRole, formatID(id), nil, audit.Payload{"role": role.String()})
	return gin.H{"id": id, "role": role}, nil
}

func services(req *shell.Request) (*Service, audit.Recorder, error) {
	svc, err := capability.Get[*Service](req.Caps(), Alias)
	if err != nil {
		return nil, nil, err
	}
	rec, err := capability.Get[audit.Recorder](req.Caps(), capability.CoreAudit)
	if err != nil {
		return nil, nil, err
	}
	return svc, rec, nil
}

func actor(req *shell.Request) Actor {
	return Actor{ID: req.Security.UserID, UserRole: req.Security.Role()}
}

func formID(req *shell.Request) (int64, error) {
	id, err := strconv.ParseInt(req.Form(api.FieldID), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func record(req *shell.Request, rec audit.Recorder, action, entityID string, err error, payload audit.Payload) {
	ev := req.Event(action, audit.OutcomeSuccess, audit.LevelInfo)
	if err != nil {
		ev.Outcome, ev.Level = audit.OutcomeFailure, audit.LevelWarn
		if k := apperr.KindOf(err); k == apperr.Forbidden {
			ev.Outcome = audit.OutcomeDenied
		}
		if payload == nil {
			payload = audit.Payload{}
		}
		payload["reason"] = apperr.KindOf(err).String()
	}
	ev.Entity, ev.EntityID = "user", entityID
	ev.Payload = payload
	rec.Record(req.Ctx(), ev)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
