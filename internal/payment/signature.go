package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignHex returns the lowercase hex HMAC-SHA256 of message under secret.
func SignHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex recomputes the HMAC of message and compares it with the supplied
// hex signature in constant time. Hex case is ignored.
func VerifyHex(secret, message, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hmac.Equal(mac.Sum(nil), got)
}

// --- Wallet A: ordered key=value pairs joined with '&' ---
//
// The field order below is fixed by the gateway. It happens to be
// alphabetical today but must not be produced by sorting.

// WalletACreateFields are the signed fields of a wallet A payment request.
type WalletACreateFields struct {
	AccessKey   string
	Amount      int64
	ExtraData   string
	IpnURL      string
	OrderID     string
	OrderInfo   string
	PartnerCode string
	RedirectURL string
	RequestID   string
	RequestType string
}

// Canonical builds the string signed for a payment request.
func (f WalletACreateFields) Canonical() string {
	var b strings.Builder
	b.WriteString("accessKey=" + f.AccessKey)
	b.WriteString("&amount=" + strconv.FormatInt(f.Amount, 10))
	b.WriteString("&extraData=" + f.ExtraData)
	b.WriteString("&ipnUrl=" + f.IpnURL)
	b.WriteString("&orderId=" + f.OrderID)
	b.WriteString("&orderInfo=" + f.OrderInfo)
	b.WriteString("&partnerCode=" + f.PartnerCode)
	b.WriteString("&redirectUrl=" + f.RedirectURL)
	b.WriteString("&requestId=" + f.RequestID)
	b.WriteString("&requestType=" + f.RequestType)
	return b.String()
}

// WalletANotification is the IPN body wallet A posts to the callback URL.
type WalletANotification struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// Canonical builds the string wallet A signed for this notification. The
// access key is not part of the body, so it is supplied by the caller.
// Empty fields are kept as "key=".
func (n WalletANotification) Canonical(accessKey string) string {
	var b strings.Builder
	b.WriteString("accessKey=" + accessKey)
	b.WriteString("&amount=" + strconv.FormatInt(n.Amount, 10))
	b.WriteString("&extraData=" + n.ExtraData)
	b.WriteString("&message=" + n.Message)
	b.WriteString("&orderId=" + n.OrderID)
	b.WriteString("&orderInfo=" + n.OrderInfo)
	b.WriteString("&orderType=" + n.OrderType)
	b.WriteString("&partnerCode=" + n.PartnerCode)
	b.WriteString("&payType=" + n.PayType)
	b.WriteString("&requestId=" + n.RequestID)
	b.WriteString("&responseTime=" + strconv.FormatInt(n.ResponseTime, 10))
	b.WriteString("&resultCode=" + strconv.Itoa(n.ResultCode))
	b.WriteString("&transId=" + strconv.FormatInt(n.TransID, 10))
	return b.String()
}

// WalletAQueryCanonical builds the string signed for a transaction status query.
func WalletAQueryCanonical(accessKey, orderID, partnerCode, requestID string) string {
	return "accessKey=" + accessKey +
		"&orderId=" + orderID +
		"&partnerCode=" + partnerCode +
		"&requestId=" + requestID
}

// VerifyWalletA checks the signature of a wallet A notification.
func VerifyWalletA(n WalletANotification, creds WalletACredentials) bool {
	return VerifyHex(creds.SecretKey, n.Canonical(creds.AccessKey), n.Signature)
}

// --- Wallet B: '|' separated fields, MAC over the raw callback data ---

// WalletBOrderFields are the fields signed with key1 when creating an order.
type WalletBOrderFields struct {
	AppID      string
	AppTransID string
	AppUser    string
	Amount     int64
	AppTime    int64
	EmbedData  string
	Item       string
}

// Canonical builds appid|apptransid|appuser|amount|apptime|embeddata|item.
func (f WalletBOrderFields) Canonical() string {
	return strings.Join([]string{
		f.AppID,
		f.AppTransID,
		f.AppUser,
		strconv.FormatInt(f.Amount, 10),
		strconv.FormatInt(f.AppTime, 10),
		f.EmbedData,
		f.Item,
	}, "|")
}

// WalletBQueryCanonical builds appid|apptransid|key1 for a status query.
func WalletBQueryCanonical(appID, appTransID, key1 string) string {
	return appID + "|" + appTransID + "|" + key1
}

// VerifyWalletB checks the callback MAC, computed with key2 over the data
// string exactly as received.
func VerifyWalletB(cb *WalletBCallback, key2 string) bool {
	return VerifyHex(key2, cb.Envelope.Data, cb.Envelope.MAC)
}
