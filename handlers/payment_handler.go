// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"silently-server/ledger"
	"silently-server/metrics"
	"silently-server/middlewares"
	"silently-server/models"
	"silently-server/notifications"
	"silently-server/payment"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// CreateOrderHandler godoc
// @Summary      Create a payment order
// @Description  Creates a gateway order for a plan purchase or a credit top-up. The amount comes from the catalog, never from the client.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        orderRequest  body  CreateOrderRequest  true  "Order request payload"
// @Success      201 {object} CreateOrderResponse "Order created successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, unknown plan or package"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      502 {object} echo.HTTPError     "Payment gateway unavailable"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/payments/orders [post]
func (h *Handler) CreateOrderHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid order request payload:", err)
		return echo.ErrBadRequest
	}

	order := models.PaymentOrder{AccountID: accountID, Status: models.OrderCreated}
	notes := map[string]string{"account_id": fmt.Sprint(accountID)}

	switch models.OrderKind(req.Kind) {
	case models.PlanOrder:
		planName, ok := models.ParsePlanName(strings.ToLower(req.Plan))
		if !ok || !planName.IsPaid() {
			return &echo.HTTPError{
				Code:    http.StatusBadRequest,
				Message: "plan must be one of: pro, advanced",
			}
		}
		plan := models.Plan{}
		if err := h.DB.WithContext(ctx).Where("name = ?", planName).First(&plan).Error; err != nil {
			logger.Errorf("Failed to load plan %s: %v", planName, err)
			return echo.ErrInternalServerError
		}
		order.Kind = models.PlanOrder
		order.PlanName = &planName
		order.Credits = plan.Credits
		order.Amount = plan.Price
		order.Currency = plan.Currency
		notes["plan"] = string(planName)

	case models.TopUpOrder:
		pkg := models.CreditPackage{}
		err := h.DB.WithContext(ctx).Where("code = ?", req.PackageCode).First(&pkg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &echo.HTTPError{
				Code:    http.StatusBadRequest,
				Message: "unknown credit package",
			}
		}
		if err != nil {
			logger.Errorf("Failed to load credit package %s: %v", req.PackageCode, err)
			return echo.ErrInternalServerError
		}
		order.Kind = models.TopUpOrder
		order.Credits = pkg.Credits
		order.Amount = pkg.Price
		order.Currency = pkg.Currency
		notes["credits"] = fmt.Sprint(pkg.Credits)

	default:
		return &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "kind must be one of: plan, topup",
		}
	}

	created, err := h.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  fmt.Sprintf("acct_%d_%d", accountID, h.now().UnixMilli()),
		Notes:    notes,
	})
	if err != nil {
		logger.Errorf("Failed to create gateway order: %v", err)
		return &echo.HTTPError{
			Code:    http.StatusBadGateway,
			Message: "Payment gateway unavailable, please try again",
		}
	}

	order.OrderID = created.ID
	if err := h.DB.WithContext(ctx).Create(&order).Error; err != nil {
		logger.Errorf("Failed to store order %s: %v", created.ID, err)
		return echo.ErrInternalServerError
	}

	logger.Infof("Order %s (%s) created for account %d", order.OrderID, order.Kind, accountID)
	return c.JSON(http.StatusCreated, CreateOrderResponse{
		OrderID:  order.OrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    h.Gateway.KeyID(),
		Credits:  order.Credits,
		Message:  "Order created successfully",
	})
}

// VerifyTopUpHandler godoc
// @Summary      Verify a top-up payment
// @Description  Checks the gateway signature and adds the ordered credits to the balance. Each payment is applied at most once.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        verifyRequest  body  VerifyTopUpRequest  true  "Payment callback payload"
// @Success      200 {object} VerifyTopUpResponse "Credits added successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing or mismatching fields"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      402 {object} echo.HTTPError     "Payment could not be verified"
// @Failure      404 {object} echo.HTTPError     "Order not found"
// @Failure      409 {object} echo.HTTPError     "Payment already applied"
// @Failure      503 {object} echo.HTTPError     "Payment verification not configured"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/payments/topup/verify [post]
func (h *Handler) VerifyTopUpHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req VerifyTopUpRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid top-up verification payload:", err)
		return echo.ErrBadRequest
	}
	if req.Credits < 0 {
		return ledgerHTTPError(c, fmt.Errorf("%w: credits must be positive", ledger.ErrInvalidArgument))
	}

	order, err := h.verifiedOrder(c, accountID, models.TopUpOrder, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return err
	}
	if req.Credits != 0 && req.Credits != order.Credits {
		logger.Warnf("Top-up credits mismatch on order %s: requested %d, ordered %d", order.OrderID, req.Credits, order.Credits)
		return ledgerHTTPError(c, fmt.Errorf("%w: credits do not match the order", ledger.ErrInvalidArgument))
	}

	acct, err := h.Ledger.ApplyTopUp(ctx, accountID, order.Credits, ledger.WithReference(req.PaymentID))
	if err != nil {
		return ledgerHTTPError(c, err)
	}
	h.markOrder(c, order, models.OrderPaid, req.PaymentID)
	h.notify(notifications.TopUpReceived(acct, order.Credits))

	logger.Infof("Top-up of %d credits applied to account %d from payment %s", order.Credits, accountID, req.PaymentID)
	return c.JSON(http.StatusOK, VerifyTopUpResponse{
		NewBalance:   acct.CreditBalance,
		AddedCredits: order.Credits,
		Message:      "Credits added successfully",
	})
}

// VerifyPlanHandler godoc
// @Summary      Verify a plan payment
// @Description  Checks the gateway signature and moves the account to the purchased plan, replacing its credit balance with the plan grant.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Authorization  header  string  true  "Bearer token for authentication. Replace <your_token_here> with a valid token."  default(Bearer <your_token_here>)
// @Param        verifyRequest  body  VerifyPlanRequest  true  "Payment callback payload"
// @Success      200 {object} VerifyPlanResponse "Plan upgraded successfully"
// @Failure      400 {object} echo.HTTPError     "Bad request, missing or mismatching fields"
// @Failure      401 {object} echo.HTTPError     "Unauthorized, invalid or expired session token"
// @Failure      402 {object} echo.HTTPError     "Payment could not be verified"
// @Failure      404 {object} echo.HTTPError     "Order not found"
// @Failure      409 {object} echo.HTTPError     "Payment already applied"
// @Failure      503 {object} echo.HTTPError     "Payment verification not configured"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/payments/plan/verify [post]
func (h *Handler) VerifyPlanHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	accountID, err := middlewares.GetAuthenticatedAccountID(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req VerifyPlanRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Invalid plan verification payload:", err)
		return echo.ErrBadRequest
	}
	planName, ok := models.ParsePlanName(strings.ToLower(req.Plan))
	if !ok || !planName.IsPaid() {
		return ledgerHTTPError(c, fmt.Errorf("%w: plan must be one of: pro, advanced", ledger.ErrInvalidArgument))
	}

	order, err := h.verifiedOrder(c, accountID, models.PlanOrder, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return err
	}
	if order.PlanName == nil || *order.PlanName != planName {
		logger.Warnf("Plan mismatch on order %s: requested %s", order.OrderID, planName)
		return ledgerHTTPError(c, fmt.Errorf("%w: plan does not match the order", ledger.ErrInvalidArgument))
	}

	plan := models.Plan{}
	if err := h.DB.WithContext(ctx).Where("name = ?", planName).First(&plan).Error; err != nil {
		logger.Errorf("Failed to load plan %s: %v", planName, err)
		return echo.ErrInternalServerError
	}

	now := h.now()
	expiry := plan.ExpiryFrom(now)
	acct, err := h.Ledger.UpgradePlan(ctx, accountID, planName, plan.Credits, expiry, ledger.WithReference(req.PaymentID))
	if err != nil {
		return ledgerHTTPError(c, err)
	}
	h.markOrder(c, order, models.OrderPaid, req.PaymentID)

	paymentID := req.PaymentID
	sub := models.Subscription{
		Provider:          models.Razorpay,
		ProviderPaymentID: &paymentID,
		Plan:              planName,
		Status:            models.ActiveSubscription,
		StartedAt:         now,
		ExpiresAt:         expiry,
		AccountID:         accountID,
	}
	if err := h.DB.WithContext(ctx).Create(&sub).Error; err != nil {
		logger.Errorf("Plan applied but subscription record for account %d failed: %v", accountID, err)
	}
	h.notify(notifications.PlanUpgraded(acct))

	logger.Infof("Account %d upgraded to %s from payment %s", accountID, planName, req.PaymentID)
	return c.JSON(http.StatusOK, VerifyPlanResponse{
		Plan:          string(acct.Plan),
		CreditBalance: acct.CreditBalance,
		PlanExpiry:    formatTime(acct.PlanExpiry),
		Message:       "Plan upgraded successfully",
	})
}

// verifiedOrder checks the gateway signature before anything else, then
// loads the account's stored order of the given kind.
func (h *Handler) verifiedOrder(c echo.Context, accountID uint, kind models.OrderKind, orderID, paymentID, signature string) (*models.PaymentOrder, error) {
	logger := c.Logger()

	if orderID == "" || paymentID == "" || signature == "" {
		return nil, &echo.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "order_id, payment_id and signature are required",
		}
	}

	if !h.Verifier.Configured() {
		logger.Error("Payment verification attempted but RAZORPAY_KEY_SECRET is not set")
		return nil, &echo.HTTPError{
			Code:    http.StatusServiceUnavailable,
			Message: "Payment verification is not configured",
		}
	}

	order := models.PaymentOrder{}
	err := h.DB.WithContext(c.Request().Context()).
		Where("order_id = ? AND account_id = ? AND kind = ?", orderID, accountID, kind).
		First(&order).Error
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		logger.Errorf("Failed to load order %s: %v", orderID, err)
		return nil, echo.ErrInternalServerError
	}

	if !h.Verifier.Verify(orderID, paymentID, signature) {
		metrics.PaymentVerificationsTotal.WithLabelValues(string(kind), "rejected").Inc()
		if !notFound {
			h.markOrder(c, &order, models.OrderRejected, "")
		}
		return nil, ledgerHTTPError(c, fmt.Errorf("%w: order %s", ledger.ErrPaymentRejected, orderID))
	}
	metrics.PaymentVerificationsTotal.WithLabelValues(string(kind), "verified").Inc()
	if notFound {
		return nil, ledgerHTTPError(c, fmt.Errorf("%w: order %s", ledger.ErrNotFound, orderID))
	}
	return &order, nil
}

func (h *Handler) markOrder(c echo.Context, order *models.PaymentOrder, status models.OrderStatus, paymentID string) {
	if order.Status == models.OrderPaid {
		return
	}
	updates := map[string]any{"status": status}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}
	if err := h.DB.WithContext(c.Request().Context()).Model(order).Updates(updates).Error; err != nil {
		c.Logger().Errorf("Failed to mark order %s as %s: %v", order.OrderID, status, err)
	}
}
