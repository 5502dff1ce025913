package domain

import "errors"

var (
	// ErrNoAccounts возвращается, когда пул аккаунтов пуст.
	ErrNoAccounts = errors.New("no accounts available")

	// ErrInsufficientCredits возвращается, когда баланс отправителя меньше суммы перевода.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInferenceUnavailable возвращается при транспортной ошибке обращения к LLM.
	ErrInferenceUnavailable = errors.New("inference unavailable")

	// ErrInferenceMalformed возвращается, когда ответ модели не разобрался
	// в ожидаемую структуру.
	ErrInferenceMalformed = errors.New("inference response malformed")

	// ErrCampaignNotFound возвращается, когда кампания не найдена.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrAccountNotFound возвращается, когда кредитный счёт пользователя не найден.
	ErrAccountNotFound = errors.New("credit account not found")
)
