package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("通知签名校验失败")

// Authenticator 校验网关回调签名
//
//	signature = hex(SHA512(order_id + status_code + gross_amount + server_key))
//
// 参与计算的是网关原样发来的字符串，不做任何格式化，
// 否则 "10000.00" 和 "10000" 会算出不同的签名。
type Authenticator struct {
	serverKey string
}

func NewAuthenticator(serverKey string) *Authenticator {
	return &Authenticator{serverKey: serverKey}
}

func (a *Authenticator) Sign(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + a.serverKey))
	return hex.EncodeToString(sum[:])
}

// Verify 签名不一致时返回 ErrInvalidSignature，调用方不应再做任何处理
func (a *Authenticator) Verify(orderID, statusCode, grossAmount, signature string) error {
	if signature == "" || a.serverKey == "" {
		return ErrInvalidSignature
	}
	expected := a.Sign(orderID, statusCode, grossAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
