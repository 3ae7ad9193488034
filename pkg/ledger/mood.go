package ledger

import (
	"github.com/shopspring/decimal"
)

var (
	richBalanceShare = decimal.NewFromFloat(0.5)
	poorBalanceShare = decimal.NewFromFloat(0.1)
	poorSpendRatio   = decimal.NewFromFloat(0.8)
)

// ComputeMood derives the pet's mood from stats. The rich check runs before the poor check.
//
//	rich:    income > expenses and balance > budget*0.5
//	poor:    expenses / max(income, 1) > 0.8 or balance < budget*0.1
//	neutral: otherwise
func ComputeMood(stats UserStats) PetMood {
	if stats.TotalIncome.GreaterThan(stats.TotalExpenses) &&
		stats.CurrentBalance.GreaterThan(stats.MonthlyBudget.Mul(richBalanceShare)) {
		return PetMood{
			Expression:  Rich,
			Accessories: []string{AccessorySunglasses, AccessoryGoldChain},
		}
	}

	denominator := decimal.Max(stats.TotalIncome, decimal.NewFromInt(1))
	if stats.TotalExpenses.Div(denominator).GreaterThan(poorSpendRatio) ||
		stats.CurrentBalance.LessThan(stats.MonthlyBudget.Mul(poorBalanceShare)) {
		return PetMood{
			Expression:  Poor,
			Accessories: []string{AccessoryBeggingBowl},
		}
	}

	return PetMood{Expression: Neutral, Accessories: []string{}}
}
