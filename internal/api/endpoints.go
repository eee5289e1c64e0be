package api

// Module codes
const (
	ModuleAuth      = "auth"
	ModuleUsers     = "users"
	ModuleModules   = "modules"
	ModuleDashboard = "dashboard"
)

// Actions of the auth module
const (
	AuthLogin        = "login"
	AuthLogout       = "logout"
	AuthResetRequest = "reset_request"
	AuthResetApply   = "reset_apply"
)

// Actions of the users module
const (
	UsersCreate  = "create"
	UsersUpdate  = "update"
	UsersDelete  = "delete"
	UsersSetRole = "set_role"
)

const ModulesToggle = "toggle"

// Form fields
const (
	FieldIdentifier = "identifier"
	FieldSecret     = "secret"
	FieldEmail      = "email"
	FieldToken      = "token"
	FieldPassword   = "password"
	FieldCSRF       = "_csrf"
	FieldID         = "id"
	FieldName       = "name"
	FieldPhone      = "phone"
	FieldRole       = "role"
	FieldStatus     = "status"
	FieldCode       = "code"
	FieldEnabled    = "enabled"
)

// PublicActions can be called without an identity. Everything else
// requires one. An empty action is the module view.
var PublicActions = map[string]bool{
	ModuleAuth + "/":                    true,
	ModuleAuth + "/" + AuthLogin:        true,
	ModuleAuth + "/" + AuthLogout:       true,
	ModuleAuth + "/" + AuthResetRequest: true,
	ModuleAuth + "/" + AuthResetApply:   true,
}

func IsPublic(module, action string) bool {
	return PublicActions[module+"/"+action]
}
