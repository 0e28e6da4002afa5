package status

import "errors"

var (
	ErrFailedPayment   = errors.New("payment: payment failed")
	ErrRefCodeNotFound = errors.New("ref code: ref code not found")

	ErrPaymentNotFound    = errors.New("payment: payment not found")
	ErrPaymentRequired    = errors.New("payment: total is above zero, a payment is required")
	ErrFreeCheckout       = errors.New("payment: total is zero, join the event instead")
	ErrCheckoutInProgress = errors.New("checkout: another checkout is in progress")

	ErrEventNotFound      = errors.New("event: event not found")
	ErrEventNotOpen       = errors.New("event: event is not open for registration")
	ErrTicketTypeNotFound = errors.New("ticket type: ticket type not found")
	ErrTicketTypeRequired = errors.New("ticket type: a ticket type must be selected")
	ErrNotOnSale          = errors.New("ticket type: ticket type is not on sale")
	ErrSoldOut            = errors.New("ticket type: no tickets available")
	ErrAlreadyRegistered  = errors.New("participant: user already holds a ticket for this event")

	ErrCouponNotFound = errors.New("coupon: coupon not found")

	ErrParticipantNotFound = errors.New("participant: participant not found")

	ErrProfileNotFound = errors.New("profile: profile not found")
	ErrProfileHidden   = errors.New("profile: profile is not visible")
	ErrSelfLike        = errors.New("like: cannot like yourself")
	ErrNotAttending    = errors.New("like: user is not attending this event")

	ErrMatchNotFound  = errors.New("match: match not found")
	ErrNotMatchMember = errors.New("match: user is not part of this match")
	ErrChatExpired    = errors.New("chat: chat window has closed")
	ErrEmptyMessage   = errors.New("chat: message body is empty")
	ErrMessageTooLong = errors.New("chat: message body is too long")

	ErrForbidden      = errors.New("auth: access denied")
	ErrInvalidRequest = errors.New("request: required fields are missing")

	ErrDraftNotFound = errors.New("draft: draft not found")

	ErrProviderNotRegistered = errors.New("gateway: provider not registered")
)
