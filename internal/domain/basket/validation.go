package basket

import (
	"context"
	"iter"
)

// Validation error codes yielded by the basket itself.
const (
	CodeNoCommonShipping = "no_common_shipping"
	CodeNoCommonPayment  = "no_common_payment"
)

const separateAdvice = "Try to remove some product from the basket and order them separately."

// ValidationError is a diagnostic about the basket. It is not a Go error:
// callers decide whether it blocks checkout.
type ValidationError struct {
	Code    string
	Message string
}

// ValidationErrors lazily yields the order source errors first, then
// no_common_shipping when shippable lines have no common shipping method,
// then no_common_payment when no payment method is available. A
// collaborator failure is yielded as a non-nil error and ends the sequence.
func (b *Basket) ValidationErrors(ctx context.Context) iter.Seq2[ValidationError, error] {
	return func(yield func(ValidationError, error) bool) {
		if b.env.Validator != nil {
			errs, err := b.env.Validator.Validate(ctx, b)
			if err != nil {
				yield(ValidationError{}, err)
				return
			}
			for _, ve := range errs {
				if !yield(ve, nil) {
					return
				}
			}
		}

		shippable, err := b.HasShippableLines(ctx)
		if err != nil {
			yield(ValidationError{}, err)
			return
		}
		if shippable {
			methods, err := b.AvailableShippingMethods(ctx)
			if err != nil {
				yield(ValidationError{}, err)
				return
			}
			if len(methods) == 0 {
				ve := ValidationError{
					Code:    CodeNoCommonShipping,
					Message: "Products in basket cannot be shipped together. " + separateAdvice,
				}
				if !yield(ve, nil) {
					return
				}
			}
		}

		methods, err := b.AvailablePaymentMethods(ctx)
		if err != nil {
			yield(ValidationError{}, err)
			return
		}
		if len(methods) == 0 {
			yield(ValidationError{
				Code:    CodeNoCommonPayment,
				Message: "Products in basket have no common payment method. " + separateAdvice,
			}, nil)
		}
	}
}
