package payment

import (
	"errors"
	"fmt"
	"strings"

	"storepay/internal/config"
)

// ErrGatewayNotConfigured means a required credential is missing. The wrapped
// message names the key; it is meant for logs, not buyers.
var ErrGatewayNotConfigured = errors.New("payment gateway not configured")

const (
	DefaultWalletAEndpoint = "https://test-payment.momo.vn/v2/gateway/api"
	DefaultWalletBEndpoint = "https://sandbox.zalopay.com.vn/v001/tpe"
)

// WalletACredentials identify this merchant at wallet A.
type WalletACredentials struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
}

// WalletBCredentials identify this merchant at wallet B. Key1 signs outbound
// requests, Key2 authenticates callbacks.
type WalletBCredentials struct {
	AppID    string
	Key1     string
	Key2     string
	Endpoint string
}

// BankAccount is where buyers send manual transfers.
type BankAccount struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Branch        string `json:"branch,omitempty"`
}

func LoadWalletA(p config.Provider) (WalletACredentials, error) {
	var c WalletACredentials
	var err error
	if c.PartnerCode, err = requireKey(p, "WALLET_A_PARTNER_CODE"); err != nil {
		return c, err
	}
	if c.AccessKey, err = requireKey(p, "WALLET_A_ACCESS_KEY"); err != nil {
		return c, err
	}
	if c.SecretKey, err = requireKey(p, "WALLET_A_SECRET_KEY"); err != nil {
		return c, err
	}
	c.Endpoint = optional(p, "WALLET_A_ENDPOINT", DefaultWalletAEndpoint)
	return c, nil
}

func LoadWalletB(p config.Provider) (WalletBCredentials, error) {
	var c WalletBCredentials
	var err error
	if c.AppID, err = requireKey(p, "WALLET_B_APP_ID"); err != nil {
		return c, err
	}
	if c.Key1, err = requireKey(p, "WALLET_B_KEY1"); err != nil {
		return c, err
	}
	if c.Key2, err = requireKey(p, "WALLET_B_KEY2"); err != nil {
		return c, err
	}
	c.Endpoint = optional(p, "WALLET_B_ENDPOINT", DefaultWalletBEndpoint)
	return c, nil
}

func LoadBank(p config.Provider) (BankAccount, error) {
	var b BankAccount
	var err error
	if b.BankName, err = requireKey(p, "BANK_NAME"); err != nil {
		return b, err
	}
	if b.AccountNumber, err = requireKey(p, "BANK_ACCOUNT_NUMBER"); err != nil {
		return b, err
	}
	if b.AccountName, err = requireKey(p, "BANK_ACCOUNT_NAME"); err != nil {
		return b, err
	}
	b.Branch = optional(p, "BANK_BRANCH", "")
	return b, nil
}

// LoadBaseURL returns the public base URL of the shop without a trailing slash.
func LoadBaseURL(p config.Provider) (string, error) {
	u, err := requireKey(p, "APP_BASE_URL")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(u, "/"), nil
}

func requireKey(p config.Provider, key string) (string, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s is not set", ErrGatewayNotConfigured, key)
	}
	return v, nil
}

func optional(p config.Provider, key, fallback string) string {
	if v, ok := p.Lookup(key); ok {
		return strings.TrimRight(v, "/")
	}
	return fallback
}
