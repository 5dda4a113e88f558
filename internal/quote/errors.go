package quote

import "errors"

// Selection errors raised while turning a product into a quote item.
var (
	ErrSizeRequired           = errors.New("quote: size selection is required for products with variable pricing")
	ErrInvalidSize            = errors.New("quote: invalid size selection")
	ErrInvalidQuantity        = errors.New("quote: quantity must be a positive integer")
	ErrCustomSpecsUnsupported = errors.New("quote: custom specifications are not accepted for this brand")
)

// Approval link errors. Customers see all of them as "this link is no longer valid".
var (
	ErrTokenExpired         = errors.New("quote: approval link has expired")
	ErrTokenAlreadyConsumed = errors.New("quote: approval link has already been used")
	ErrTokenNotFound        = errors.New("quote: approval link not recognised")
)

// Lifecycle and lookup errors.
var (
	ErrNotFound          = errors.New("quote: not found")
	ErrCartNotFound      = errors.New("quote: cart not found")
	ErrItemNotFound      = errors.New("quote: cart item not found")
	ErrEmptyCart         = errors.New("quote: cart is empty")
	ErrInvalidTransition = errors.New("quote: invalid status transition")
	ErrNotSent           = errors.New("quote: quote has not been sent to the customer")
	ErrInvalidShipping   = errors.New("quote: shipping cost must not be negative")
)

// IsLinkError reports whether err is one of the approval link failures.
func IsLinkError(err error) bool {
	return errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenAlreadyConsumed) || errors.Is(err, ErrTokenNotFound)
}
