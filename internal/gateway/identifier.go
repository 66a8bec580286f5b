package gateway

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/model"
)

var ErrMalformedIdentifier = errors.New("交易标识格式错误")

// 网关 order_id 的后缀与结算阶段的对应关系
var stageCodes = map[string]string{
	"DP":   model.SettlementStageDown,
	"FULL": model.SettlementStageFull,
	"CLR":  model.SettlementStageClearance,
}

// Identifier 网关 order_id 解析结果：{orderNo}-{DP|FULL|CLR}
type Identifier struct {
	OrderNo string
	Stage   string
}

// ParseIdentifier 按最后一个 "-" 切分，订单号本身可以包含 "-"
func ParseIdentifier(ref string) (Identifier, error) {
	idx := strings.LastIndex(ref, "-")
	if idx <= 0 || idx == len(ref)-1 {
		return Identifier{}, fmt.Errorf("%w: %q", ErrMalformedIdentifier, ref)
	}
	stage, ok := stageCodes[ref[idx+1:]]
	if !ok {
		return Identifier{}, fmt.Errorf("%w: unknown stage in %q", ErrMalformedIdentifier, ref)
	}
	return Identifier{OrderNo: ref[:idx], Stage: stage}, nil
}
