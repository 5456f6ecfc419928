package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Gateway names as they appear in callback routes and logs.
const (
	GatewayWalletA = "wallet-a"
	GatewayWalletB = "wallet-b"
)

// ErrMalformedCallback is returned for bodies that cannot be decoded into the
// gateway's callback shape.
var ErrMalformedCallback = errors.New("malformed payment callback")

// ReferenceMatch says how a callback's reference is compared to stored codes.
type ReferenceMatch int

const (
	// MatchExact compares the full reference code.
	MatchExact ReferenceMatch = iota
	// MatchContains looks for a stored code containing the value. Wallet B
	// echoes only its own transaction id, from which a fragment is recovered.
	MatchContains
)

// Callback is a decoded gateway notification. The set of implementations is
// closed: *WalletACallback and *WalletBCallback.
type Callback interface {
	Gateway() string
	// Reference returns the correlation value and how to match it. An empty
	// value means the callback cannot name any payment.
	Reference() (string, ReferenceMatch)
	Succeeded() bool
	PaidAmount() int64
	Raw() []byte

	isCallback()
}

// WalletACallback is a wallet A IPN.
type WalletACallback struct {
	Notification WalletANotification
	raw          []byte
}

func (c *WalletACallback) Gateway() string { return GatewayWalletA }

func (c *WalletACallback) Reference() (string, ReferenceMatch) {
	return strings.TrimSpace(c.Notification.OrderID), MatchExact
}

// Succeeded reports resultCode 0.
func (c *WalletACallback) Succeeded() bool   { return c.Notification.ResultCode == 0 }
func (c *WalletACallback) PaidAmount() int64 { return c.Notification.Amount }
func (c *WalletACallback) Raw() []byte       { return c.raw }
func (c *WalletACallback) isCallback()       {}

// WalletBEnvelope is the outer body wallet B posts.
type WalletBEnvelope struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

// WalletBCallbackData is the JSON document carried in WalletBEnvelope.Data.
type WalletBCallbackData struct {
	AppID          int64  `json:"appid"`
	AppTransID     string `json:"apptransid"`
	AppTime        int64  `json:"apptime"`
	AppUser        string `json:"appuser"`
	Amount         int64  `json:"amount"`
	EmbedData      string `json:"embeddata"`
	Item           string `json:"item"`
	ZPTransID      int64  `json:"zptransid"`
	ServerTime     int64  `json:"servertime"`
	Channel        int    `json:"channel"`
	MerchantUserID string `json:"merchantuserid"`
	UserFeeAmount  int64  `json:"userfeeamount"`
	DiscountAmount int64  `json:"discountamount"`
}

// WalletBCallback is a wallet B payment notification.
type WalletBCallback struct {
	Envelope WalletBEnvelope
	Payload  WalletBCallbackData
	raw      []byte
}

const minReferenceFragment = 6

var fragmentPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

func (c *WalletBCallback) Gateway() string { return GatewayWalletB }

// Reference recovers the reference code from apptransid ("yymmdd_<code>").
// Anything that is not a plain uppercase alphanumeric fragment of a useful
// length yields "", so it can never widen the stored-code search.
func (c *WalletBCallback) Reference() (string, ReferenceMatch) {
	id := strings.TrimSpace(c.Payload.AppTransID)
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) < minReferenceFragment || len(id) > ReferenceLength || !fragmentPattern.MatchString(id) {
		return "", MatchContains
	}
	return id, MatchContains
}

// Succeeded is always true: wallet B only calls back for paid orders.
func (c *WalletBCallback) Succeeded() bool   { return true }
func (c *WalletBCallback) PaidAmount() int64 { return c.Payload.Amount }
func (c *WalletBCallback) Raw() []byte       { return c.raw }
func (c *WalletBCallback) isCallback()       {}

// DecodeCallback parses raw into the callback variant of gateway. It does not
// verify signatures.
func DecodeCallback(gateway string, raw []byte) (Callback, error) {
	switch gateway {
	case GatewayWalletA:
		var n WalletANotification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		if n.OrderID == "" || n.Signature == "" {
			return nil, fmt.Errorf("%w: orderId and signature are required", ErrMalformedCallback)
		}
		return &WalletACallback{Notification: n, raw: raw}, nil

	case GatewayWalletB:
		var env WalletBEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		if env.Data == "" || env.MAC == "" {
			return nil, fmt.Errorf("%w: data and mac are required", ErrMalformedCallback)
		}
		var data WalletBCallbackData
		if err := json.Unmarshal([]byte(env.Data), &data); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrMalformedCallback, err)
		}
		return &WalletBCallback{Envelope: env, Payload: data, raw: raw}, nil

	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrMalformedCallback, gateway)
	}
}
