package enums

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodOnline   PaymentMethod = "online"
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

var paymentMethods = newSet("payment method",
	PaymentMethodCash,
	PaymentMethodOnline,
	PaymentMethodRazorpay,
)

func (s PaymentMethod) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentMethod.
func (s PaymentMethod) IsValid() bool {
	return paymentMethods.contains(s)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse(value)
}

// UsesGateway reports whether the method settles through the payment gateway.
func (s PaymentMethod) UsesGateway() bool {
	return s == PaymentMethodOnline || s == PaymentMethodRazorpay
}
