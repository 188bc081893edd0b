package policies

// Claim names gating the users module endpoints. Seeded roles carry these as
// RoleClaim rows and the token issuer copies them into access tokens.
const (
	UsersRead   = "users:read"
	UsersCreate = "users:create"
	UsersUpdate = "users:update"
	UsersDelete = "users:delete"
)

// Module names a business module and the policies it exposes.
type Module struct {
	Name     string
	Policies []string
}

// Registry is the statically assembled policy list, one entry per module.
// Registration happens here by explicit composition, nothing is discovered
// at runtime.
var Registry = []Module{
	{
		Name:     "users",
		Policies: []string{UsersRead, UsersCreate, UsersUpdate, UsersDelete},
	},
}
