package dto

// RestrictionCheckQuery is bound from the query string of
// GET /v1/restrictions/check. ProductTypeID is looked up when omitted.
type RestrictionCheckQuery struct {
	AccountID     string `form:"account_id"      validate:"required,uuid"`
	ProductID     string `form:"product_id"      validate:"required,uuid"`
	ProductTypeID string `form:"product_type_id" validate:"omitempty,uuid"`
}

type RestrictionCheckResponse struct {
	Allowed bool    `json:"allowed"`
	Reason  *string `json:"reason"`
	RuleID  *string `json:"rule_id"`
}

type AddRuleRequest struct {
	AccountID string  `json:"account_id" validate:"required,uuid"`
	Scope     string  `json:"scope"      validate:"required,oneof=product product_type"`
	TargetID  string  `json:"target_id"  validate:"required,uuid"`
	Permitted *bool   `json:"permitted"  validate:"required"`
	Reason    *string `json:"reason"     validate:"omitempty,max=255"`
}

type RuleResponse struct {
	ID        string  `json:"id"`
	AccountID string  `json:"account_id"`
	Scope     string  `json:"scope"`
	TargetID  string  `json:"target_id"`
	Permitted bool    `json:"permitted"`
	Active    bool    `json:"active"`
	Reason    *string `json:"reason"`
	CreatedAt string  `json:"created_at"`
}
