package service

import (
	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"

	"github.com/shopspring/decimal"
)

// ProjectBalance returns the balance after applying sign*amount to current.
// A result below zero is rejected; the ledger never lets an account overdraw.
func ProjectBalance(current decimal.Decimal, sign int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return current, apperror.Validation("amount must be greater than zero")
	}
	if sign != 1 && sign != -1 {
		return current, apperror.Validation("sign must be 1 or -1")
	}
	next := current.Add(amount.Mul(decimal.NewFromInt(int64(sign)))).Round(2)
	if next.IsNegative() {
		return current, apperror.New(apperror.KindInsufficientFunds,
			"insufficient funds: balance %s, requested %s", current.StringFixed(2), amount.StringFixed(2))
	}
	return next, nil
}

// MaxMovementQuantity bounds a single stock movement or sale line.
const MaxMovementQuantity = 1_000_000

// ProjectStock returns the quantity after applying sign*qty to current.
// Only stock-controlled products are held to the zero floor.
func ProjectStock(current, sign, qty int, controlled bool) (int, error) {
	if qty <= 0 {
		return current, apperror.Validation("quantity must be greater than zero")
	}
	if qty > MaxMovementQuantity {
		return current, apperror.Validation("quantity must not exceed %d", MaxMovementQuantity)
	}
	if sign != 1 && sign != -1 {
		return current, apperror.Validation("sign must be 1 or -1")
	}
	next := current + sign*qty
	if controlled && next < 0 {
		return current, apperror.New(apperror.KindInsufficientStock,
			"insufficient stock: available %d, requested %d", current, qty)
	}
	return next, nil
}
