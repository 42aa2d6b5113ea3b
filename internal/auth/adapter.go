package auth

import (
	"context"
	"strings"

	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

// Adapter implements the Casbin persist.Adapter interface using storage.Storage.
type Adapter struct {
	storage storage.Storage
}

func NewAdapter(s storage.Storage) *Adapter {
	return &Adapter{storage: s}
}

func ruleValues(r storage.CasbinRule) []string {
	vals := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	for len(vals) > 0 && vals[len(vals)-1] == "" {
		vals = vals[:len(vals)-1]
	}
	return vals
}

func toRule(ptype string, values []string) storage.CasbinRule {
	r := storage.CasbinRule{PType: ptype}
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i, v := range values {
		if i >= len(fields) {
			break
		}
		*fields[i] = v
	}
	return r
}

// LoadPolicy loads all policy rules from the storage.
func (a *Adapter) LoadPolicy(m model.Model) error {
	rules, err := a.storage.LoadCasbinRules(context.Background())
	if err != nil {
		return err
	}
	for _, rule := range rules {
		line := strings.Join(append([]string{rule.PType}, ruleValues(rule)...), ", ")
		if err := persist.LoadPolicyLine(line, m); err != nil {
			return err
		}
	}
	return nil
}

// SavePolicy replaces the stored rules with the model's current policy.
func (a *Adapter) SavePolicy(m model.Model) error {
	ctx := context.Background()
	existing, err := a.storage.LoadCasbinRules(ctx)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if err := a.storage.RemoveCasbinRule(ctx, r); err != nil {
			return err
		}
	}
	for _, sec := range []string{"p", "g"} {
		for ptype, ast := range m[sec] {
			for _, rule := range ast.Policy {
				if err := a.storage.AddCasbinRule(ctx, toRule(ptype, rule)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	return a.storage.AddCasbinRule(context.Background(), toRule(ptype, rule))
}

func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	return a.storage.RemoveCasbinRule(context.Background(), toRule(ptype, rule))
}

// RemoveFilteredPolicy removes the stored rules of ptype whose values match
// fieldValues starting at fieldIndex. Empty filter values match anything.
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	ctx := context.Background()
	rules, err := a.storage.LoadCasbinRules(ctx)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if r.PType != ptype || !matchesFilter(r, fieldIndex, fieldValues) {
			continue
		}
		if err := a.storage.RemoveCasbinRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilter(r storage.CasbinRule, fieldIndex int, fieldValues []string) bool {
	vals := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	for i, want := range fieldValues {
		idx := fieldIndex + i
		if idx >= len(vals) {
			return false
		}
		if want != "" && vals[idx] != want {
			return false
		}
	}
	return true
}
