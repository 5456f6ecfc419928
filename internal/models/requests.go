package models

// APIResponse is the envelope used by the operator API and for error bodies.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// --- Payment API Request Payloads ---

// InitiatePaymentRequest is the body of POST /api/payments/initiate.
type InitiatePaymentRequest struct {
	OrderID   string `json:"orderId"`
	Method    string `json:"method"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

// VerifyTransferRequest is the body of the operator bank transfer verification.
type VerifyTransferRequest struct {
	ReferenceCode string `json:"referenceCode"`
}
