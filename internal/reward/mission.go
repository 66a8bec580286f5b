package reward

import (
	"github.com/shopspring/decimal"
)

// Progress 一次进度计算的结果
type Progress struct {
	Value        decimal.Decimal
	Achieved     bool
	JustAchieved bool
	Percentage   int64
}

// Evaluate 计算任务进度。
//
// 进度只增不减：负的贡献值被忽略。已经达成的任务不会因为后续事件被重置，
// JustAchieved 只在 false→true 的那一次为 true。
func Evaluate(current, contribution, target decimal.Decimal, wasAchieved bool) Progress {
	if contribution.IsNegative() {
		contribution = decimal.Zero
	}
	next := current.Add(contribution)
	achieved := wasAchieved || next.GreaterThanOrEqual(target)
	return Progress{
		Value:        next,
		Achieved:     achieved,
		JustAchieved: achieved && !wasAchieved,
		Percentage:   Percentage(next, target),
	}
}

// Percentage round(min(progress/target×100, 100))，target 为 0 时返回 0
func Percentage(progress, target decimal.Decimal) int64 {
	if !target.IsPositive() {
		return 0
	}
	pct := progress.Div(target).Mul(hundred)
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	if pct.IsNegative() {
		return 0
	}
	return pct.Round(0).IntPart()
}
