package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"storepay/internal/models"
	"storepay/internal/pkg/httpclient"
	"storepay/internal/pkg/utils"
)

// WholeAmount converts a shop amount to the integer amount both wallets
// expect. Fractional amounts are rejected rather than rounded.
func WholeAmount(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has a fractional part", d.String())
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %s must be positive", d.String())
	}
	return d.IntPart(), nil
}

// WalletAGateway implements the Gateway interface for wallet A.
type WalletAGateway struct {
	creds  WalletACredentials
	client *httpclient.Client
	now    clock
}

func NewWalletAGateway(creds WalletACredentials, client *httpclient.Client) *WalletAGateway {
	if client == nil {
		client = httpclient.New().WithTimeout(30 * time.Second)
	}
	return &WalletAGateway{creds: creds, client: client, now: time.Now}
}

func (w *WalletAGateway) Name() string {
	return GatewayWalletA
}

// CreatePayment uses the reference code as orderId and
// "<unix millis>_<payment id>" as requestId.
func (w *WalletAGateway) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResult, error) {
	amount, err := WholeAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	fields := WalletACreateFields{
		AccessKey:   w.creds.AccessKey,
		Amount:      amount,
		ExtraData:   "",
		IpnURL:      req.NotifyURL,
		OrderID:     req.ReferenceCode,
		OrderInfo:   req.Description,
		PartnerCode: w.creds.PartnerCode,
		RedirectURL: req.ReturnURL,
		RequestID:   fmt.Sprintf("%d_%s", w.now().UnixMilli(), req.PaymentID),
		RequestType: "captureWallet",
	}

	q := url.Values{}
	q.Set("partnerCode", fields.PartnerCode)
	q.Set("requestId", fields.RequestID)
	q.Set("orderId", fields.OrderID)
	q.Set("amount", strconv.FormatInt(fields.Amount, 10))
	q.Set("orderInfo", fields.OrderInfo)
	q.Set("redirectUrl", fields.RedirectURL)
	q.Set("ipnUrl", fields.IpnURL)
	q.Set("requestType", fields.RequestType)
	q.Set("extraData", fields.ExtraData)
	q.Set("signature", SignHex(w.creds.SecretKey, fields.Canonical()))

	return &PaymentResult{
		RequestID: fields.RequestID,
		PayURL:    w.creds.Endpoint + "/pay?" + q.Encode(),
	}, nil
}

type walletAQueryResponse struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	TransID     int64  `json:"transId"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
}

func (w *WalletAGateway) QueryStatus(ctx context.Context, p *models.Payment) (*StatusResult, error) {
	requestID := fmt.Sprintf("%d_%s", w.now().UnixMilli(), p.ID)
	body := map[string]interface{}{
		"partnerCode": w.creds.PartnerCode,
		"requestId":   requestID,
		"orderId":     p.ReferenceCode,
		"lang":        "en",
		"signature": SignHex(w.creds.SecretKey,
			WalletAQueryCanonical(w.creds.AccessKey, p.ReferenceCode, w.creds.PartnerCode, requestID)),
	}

	resp, err := w.client.PostJSON(ctx, w.creds.Endpoint+"/query", body)
	if err != nil {
		return nil, fmt.Errorf("wallet-a query failed: %w", err)
	}

	var result walletAQueryResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("wallet-a query parse error: %w", err)
	}
	if result.OrderID != "" && result.OrderID != p.ReferenceCode {
		return nil, fmt.Errorf("wallet-a query answered for order %q", result.OrderID)
	}

	state := StateFailed
	switch result.ResultCode {
	case 0:
		state = StateSucceeded
	case 1000, 7000, 7002, 9000:
		state = StatePending
	}
	return &StatusResult{State: state, Amount: result.Amount, Message: result.Message, Raw: resp}, nil
}

// WalletBGateway implements the Gateway interface for wallet B.
type WalletBGateway struct {
	creds  WalletBCredentials
	client *httpclient.Client
	now    clock
}

func NewWalletBGateway(creds WalletBCredentials, client *httpclient.Client) *WalletBGateway {
	if client == nil {
		client = httpclient.New().WithTimeout(30 * time.Second)
	}
	return &WalletBGateway{creds: creds, client: client, now: time.Now}
}

func (w *WalletBGateway) Name() string {
	return GatewayWalletB
}

// CreatePayment uses "<yymmdd>_<reference code>" as apptransid. Wallet B
// echoes apptransid in its callback, which is how the payment is found again.
func (w *WalletBGateway) CreatePayment(ctx context.Context, req CreateRequest) (*PaymentResult, error) {
	amount, err := WholeAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	now := w.now()
	embed := "{}"
	if req.ReturnURL != "" {
		b, _ := json.Marshal(map[string]string{"redirecturl": req.ReturnURL})
		embed = string(b)
	}
	appUser := req.UserID
	if appUser == "" {
		appUser = "storepay"
	}

	fields := WalletBOrderFields{
		AppID:      w.creds.AppID,
		AppTransID: now.Format("060102") + "_" + req.ReferenceCode,
		AppUser:    appUser,
		Amount:     amount,
		AppTime:    now.UnixMilli(),
		EmbedData:  embed,
		Item:       "[]",
	}

	q := url.Values{}
	q.Set("appid", fields.AppID)
	q.Set("apptransid", fields.AppTransID)
	q.Set("appuser", fields.AppUser)
	q.Set("amount", strconv.FormatInt(fields.Amount, 10))
	q.Set("apptime", strconv.FormatInt(fields.AppTime, 10))
	q.Set("embeddata", fields.EmbedData)
	q.Set("item", fields.Item)
	q.Set("description", req.Description)
	q.Set("callbackurl", req.NotifyURL)
	q.Set("mac", SignHex(w.creds.Key1, fields.Canonical()))

	return &PaymentResult{
		RequestID: fields.AppTransID,
		PayURL:    w.creds.Endpoint + "/createorder?" + q.Encode(),
	}, nil
}

type walletBQueryResponse struct {
	ReturnCode    int    `json:"returncode"`
	ReturnMessage string `json:"returnmessage"`
	IsProcessing  bool   `json:"isprocessing"`
	Amount        int64  `json:"amount"`
	ZPTransID     int64  `json:"zptransid"`
}

func (w *WalletBGateway) QueryStatus(ctx context.Context, p *models.Payment) (*StatusResult, error) {
	if p.GatewayRequestID == "" {
		return nil, fmt.Errorf("wallet-b query: payment %s has no apptransid", p.ID)
	}
	form := map[string]string{
		"appid":      w.creds.AppID,
		"apptransid": p.GatewayRequestID,
		"mac":        SignHex(w.creds.Key1, WalletBQueryCanonical(w.creds.AppID, p.GatewayRequestID, w.creds.Key1)),
	}

	resp, err := w.client.PostForm(ctx, w.creds.Endpoint+"/getstatusbyapptransid", form)
	if err != nil {
		return nil, fmt.Errorf("wallet-b query failed: %w", err)
	}

	var result walletBQueryResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("wallet-b query parse error: %w", err)
	}

	state := StateFailed
	switch {
	case result.ReturnCode == 1:
		state = StateSucceeded
	case result.IsProcessing:
		state = StatePending
	}
	return &StatusResult{State: state, Amount: result.Amount, Message: result.ReturnMessage, Raw: resp}, nil
}

// BankInfo is returned to buyers paying by bank transfer.
type BankInfo struct {
	BankAccount
	TransferContent string `json:"transferContent"`
}

// BankInstructions returns the account to pay into and the message telling
// the buyer to put the reference code in the transfer memo.
func BankInstructions(bank BankAccount, referenceCode string, amount decimal.Decimal) (BankInfo, string) {
	info := BankInfo{BankAccount: bank, TransferContent: referenceCode}
	msg := fmt.Sprintf("Please transfer %s to account %s (%s, %s) and write %s in the transfer memo exactly as shown. Your order is confirmed once the transfer is verified.",
		utils.FormatAmount(amount), bank.AccountNumber, bank.AccountName, bank.BankName, referenceCode)
	return info, msg
}
