package reward

import (
	"crypto/rand"
	"encoding/base32"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Commission 推荐佣金 = 订单总额 × 比例 / 100，四舍五入到分。负比例按 0 处理。
func Commission(orderTotal, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsNegative() || orderTotal.IsNegative() {
		return decimal.Zero
	}
	return orderTotal.Mul(ratePercent).Div(hundred).Round(2)
}

const referralCodeLength = 6

// GenerateReferralCode 生成 {PREFIX}-XXXXXX 形式的推荐码
func GenerateReferralCode(prefix string) (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)[:referralCodeLength]
	if prefix == "" {
		return code, nil
	}
	return strings.ToUpper(prefix) + "-" + code, nil
}
