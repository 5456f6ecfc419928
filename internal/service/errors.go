package service

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyPaid   = errors.New("order already paid")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrNotBankTransfer    = errors.New("payment is not a bank transfer")
	ErrPaymentFailed      = errors.New("payment already failed")
	ErrReferenceExhausted = errors.New("could not allocate a unique reference code")
)
