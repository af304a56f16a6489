package service

import (
	"context"
	"sort"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"
	"github.com/rmgimenez/php-cantina-sub001/internal/dto"
	"github.com/rmgimenez/php-cantina-sub001/internal/model"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type RestrictionService interface {
	// Check resolves whether accountID may buy productID. productTypeID is
	// looked up from the catalog when nil.
	Check(ctx context.Context, accountID, productID uuid.UUID, productTypeID *uuid.UUID) (*dto.RestrictionCheckResponse, error)
	AddRule(ctx context.Context, req dto.AddRuleRequest) (*dto.RuleResponse, error)
	DeactivateRule(ctx context.Context, ruleID uuid.UUID) error
	ListRules(ctx context.Context, accountID uuid.UUID, includeInactive bool) ([]dto.RuleResponse, error)
}

type restrictionService struct {
	rules    repository.RestrictionRepository
	accounts repository.AccountRepository
	products repository.ProductRepository
	now      Clock
}

func NewRestrictionService(
	rules repository.RestrictionRepository,
	accounts repository.AccountRepository,
	products repository.ProductRepository,
	now Clock,
) RestrictionService {
	if now == nil {
		now = UTCClock
	}
	return &restrictionService{rules: rules, accounts: accounts, products: products, now: now}
}

// decision is the outcome of evaluating the rules of one account for one
// product. rule is nil when no rule matched and the default applies.
type decision struct {
	allowed bool
	reason  *string
	rule    *model.RestrictionRule
}

const defaultDenyReason = "purchase of this product is restricted for the account"

// resolveRules picks the governing rule among active candidates: a
// product-level rule beats a type-level one, then the most recently created
// wins, then the greatest id. With no candidate the purchase is allowed.
func resolveRules(candidates []model.RestrictionRule) decision {
	if len(candidates) == 0 {
		return decision{allowed: true}
	}
	rules := append([]model.RestrictionRule(nil), candidates...)
	sort.SliceStable(rules, func(i, j int) bool {
		si, sj := rules[i].Scope == model.ScopeProduct, rules[j].Scope == model.ScopeProduct
		if si != sj {
			return si
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.After(rules[j].CreatedAt)
		}
		return rules[i].ID.String() > rules[j].ID.String()
	})
	win := rules[0]
	d := decision{allowed: win.Permitted, rule: &win, reason: win.Reason}
	if !d.allowed && (d.reason == nil || *d.reason == "") {
		r := defaultDenyReason
		d.reason = &r
	}
	return d
}

func (s *restrictionService) Check(ctx context.Context, accountID, productID uuid.UUID, productTypeID *uuid.UUID) (*dto.RestrictionCheckResponse, error) {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	typeID := productTypeID
	if typeID == nil {
		p, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return nil, apperror.FromDB(err, "product")
		}
		typeID = &p.TypeID
	}
	candidates, err := s.rules.ListCandidates(ctx, accountID, productID, *typeID)
	if err != nil {
		return nil, err
	}
	d := resolveRules(candidates)
	resp := &dto.RestrictionCheckResponse{Allowed: d.allowed, Reason: d.reason}
	if d.rule != nil {
		resp.RuleID = uuidString(&d.rule.ID)
	}
	return resp, nil
}

func (s *restrictionService) AddRule(ctx context.Context, req dto.AddRuleRequest) (*dto.RuleResponse, error) {
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, apperror.Validation("invalid account_id")
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, apperror.Validation("invalid target_id")
	}
	if req.Permitted == nil {
		return nil, apperror.Validation("permitted is required")
	}
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	switch req.Scope {
	case model.ScopeProduct:
		if _, err := s.products.FindByID(ctx, targetID); err != nil {
			return nil, apperror.FromDB(err, "product")
		}
	case model.ScopeProductType:
		if _, err := s.products.FindTypeByID(ctx, targetID); err != nil {
			return nil, apperror.FromDB(err, "product type")
		}
	default:
		return nil, apperror.Validation("scope must be product or product_type")
	}

	rule := &model.RestrictionRule{
		AccountID: accountID,
		Scope:     req.Scope,
		TargetID:  targetID,
		Permitted: *req.Permitted,
		Active:    true,
		Reason:    req.Reason,
		CreatedAt: s.now(),
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperror.FromDB(err, "restriction rule")
	}
	log.Info().
		Str("account_id", accountID.String()).
		Str("scope", rule.Scope).
		Str("target_id", targetID.String()).
		Bool("permitted", rule.Permitted).
		Msg("restriction rule added")
	return ruleToResponse(rule), nil
}

func (s *restrictionService) DeactivateRule(ctx context.Context, ruleID uuid.UUID) error {
	if _, err := s.rules.FindByID(ctx, ruleID); err != nil {
		return apperror.FromDB(err, "restriction rule")
	}
	return s.rules.Deactivate(ctx, ruleID)
}

func (s *restrictionService) ListRules(ctx context.Context, accountID uuid.UUID, includeInactive bool) ([]dto.RuleResponse, error) {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		return nil, apperror.FromDB(err, "account")
	}
	rules, err := s.rules.ListByAccount(ctx, accountID, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, *ruleToResponse(&rules[i]))
	}
	return out, nil
}

func ruleToResponse(r *model.RestrictionRule) *dto.RuleResponse {
	return &dto.RuleResponse{
		ID:        r.ID.String(),
		AccountID: r.AccountID.String(),
		Scope:     r.Scope,
		TargetID:  r.TargetID.String(),
		Permitted: r.Permitted,
		Active:    r.Active,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
