package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/foodbowl/foodbowl-backend/api/middleware"
	internalpayments "github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
)

type stubPaymentsService struct {
	createFor func(ctx context.Context, actorID, appOrderID uuid.UUID) (*internalpayments.GatewayOrderResult, error)
	verify    func(ctx context.Context, input internalpayments.VerifyInput) (*internalpayments.VerifyResult, error)
}

func (s *stubPaymentsService) CreateGatewayOrder(ctx context.Context, appOrderID uuid.UUID) (*internalpayments.GatewayOrderResult, error) {
	return s.createFor(ctx, uuid.Nil, appOrderID)
}

func (s *stubPaymentsService) CreateGatewayOrderFor(ctx context.Context, actorID, appOrderID uuid.UUID) (*internalpayments.GatewayOrderResult, error) {
	return s.createFor(ctx, actorID, appOrderID)
}

func (s *stubPaymentsService) VerifyPayment(ctx context.Context, input internalpayments.VerifyInput) (*internalpayments.VerifyResult, error) {
	return s.verify(ctx, input)
}

func (s *stubPaymentsService) ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	return 0, nil
}

func TestCreateGatewayOrder(t *testing.T) {
	userID, appOrderID := uuid.New(), uuid.New()
	svc := &stubPaymentsService{
		createFor: func(ctx context.Context, actorID, id uuid.UUID) (*internalpayments.GatewayOrderResult, error) {
			assert.Equal(t, userID, actorID)
			assert.Equal(t, appOrderID, id)
			return &internalpayments.GatewayOrderResult{AppOrderID: id, GatewayOrderID: "order_1", Amount: 45000, Currency: "INR"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/payment/create", strings.NewReader(`{"appOrderId":"`+appOrderID.String()+`"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	CreateGatewayOrder(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"razorpayOrderId":"order_1"`)
}

func TestCreateGatewayOrderUpstreamFailure(t *testing.T) {
	svc := &stubPaymentsService{
		createFor: func(ctx context.Context, actorID, id uuid.UUID) (*internalpayments.GatewayOrderResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUpstream, "gateway timeout")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/orders/payment/create", strings.NewReader(`{"appOrderId":"`+uuid.NewString()+`"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	CreateGatewayOrder(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestVerify(t *testing.T) {
	svc := &stubPaymentsService{
		verify: func(ctx context.Context, input internalpayments.VerifyInput) (*internalpayments.VerifyResult, error) {
			if input.GatewaySignature != "good" {
				return nil, pkgerrors.New(pkgerrors.CodeSignature, "signature mismatch")
			}
			return &internalpayments.VerifyResult{Verified: true, PaymentStatus: enums.PaymentStatusPaid}, nil
		},
	}

	body := func(sig string) string {
		return `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"` + sig + `","appOrderId":"` + uuid.NewString() + `"}`
	}

	resp := httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/orders/payment/verify", strings.NewReader(body("good"))))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"verified":true`)

	resp = httptest.NewRecorder()
	Verify(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/orders/payment/verify", strings.NewReader(body("bad"))))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeSignature))
}

func TestVerifyRequiresFields(t *testing.T) {
	resp := httptest.NewRecorder()
	Verify(&stubPaymentsService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/orders/payment/verify", strings.NewReader(`{"razorpay_order_id":"order_1"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
