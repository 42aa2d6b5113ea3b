package auth

import (
	"context"

	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	RoleAdmin    = "admin"
	RoleBilling  = "billing"
	RoleCustomer = "customer"
)

// Objects and actions checked by the HTTP layer.
const (
	ObjCharges    = "charges"
	ObjRates      = "rates"
	ObjBulk       = "bulk"
	ObjBills      = "bills"
	ObjStatements = "statements"
	ObjAlerts     = "alerts"

	ActRead  = "read"
	ActWrite = "write"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

var defaultPolicies = [][]string{
	{RoleAdmin, "*", "*"},
	{RoleBilling, ObjCharges, ActRead},
	{RoleBilling, ObjRates, ActRead},
	{RoleBilling, ObjBills, ActRead},
	{RoleBilling, ObjStatements, ActRead},
	{RoleBilling, ObjStatements, ActWrite},
	{RoleBilling, ObjAlerts, ActRead},
	{RoleBilling, ObjAlerts, ActWrite},
	{RoleCustomer, ObjBills, ActRead},
	{RoleCustomer, ObjStatements, ActRead},
	{RoleCustomer, ObjRates, ActRead},
	{RoleCustomer, ObjAlerts, ActRead},
	{RoleCustomer, ObjAlerts, ActWrite},
}

type Service struct {
	enforcer *casbin.Enforcer
}

// NewService builds the RBAC enforcer. Policies persist through the storage
// adapter; an empty policy table is seeded with the default role grants.
func NewService(ctx context.Context, s storage.Storage) (*Service, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}

	existing, err := s.LoadCasbinRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		for _, p := range defaultPolicies {
			if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
				return nil, err
			}
		}
	}
	return &Service{enforcer: e}, nil
}

func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}

// Grant adds a policy row and persists it.
func (s *Service) Grant(role, obj, act string) error {
	_, err := s.enforcer.AddPolicy(role, obj, act)
	return err
}

func (s *Service) Revoke(role, obj, act string) error {
	_, err := s.enforcer.RemovePolicy(role, obj, act)
	return err
}

// LoadPolicy reloads the policy from storage.
func (s *Service) LoadPolicy() error {
	return s.enforcer.LoadPolicy()
}
