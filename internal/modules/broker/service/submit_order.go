package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"forwardtest/internal/models"
)

// SubmitOrder places a FOK market order with bracket legs attached on fill.
// If the entry fills but a requested leg is missing from the response, the
// legs are placed as follow-up orders on the trade; a follow-up failure
// returns the fill result together with ErrBracket so callers can record a
// partial execution instead of swallowing it.
func (c *Client) SubmitOrder(ctx context.Context, account models.AccountRef, req models.OrderRequest) (models.OrderResult, error) {
	units := req.Units
	if req.Side == models.DirectionSell {
		units = -units
	}

	order := marketOrder{
		Type:         "MARKET",
		Instrument:   req.Instrument,
		Units:        strconv.FormatInt(units, 10),
		TimeInForce:  "FOK",
		PositionFill: "DEFAULT",
	}
	if req.StopLossPrice > 0 {
		order.StopLoss = &bracketLeg{Price: formatPrice(req.StopLossPrice), TimeInForce: "GTC"}
	}
	if req.TakeProfitPrice > 0 {
		order.TakeProfit = &bracketLeg{Price: formatPrice(req.TakeProfitPrice), TimeInForce: "GTC"}
	}

	u := fmt.Sprintf("%s/v3/accounts/%s/orders", c.baseURL(account.Environment), account.AccountID)

	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, u, orderRequestBody{Order: order}, &resp); err != nil {
		return models.OrderResult{}, fmt.Errorf("submit order %s: %w", req.Instrument, err)
	}

	if resp.OrderCancelTransaction != nil {
		return models.OrderResult{}, fmt.Errorf("submit order %s: %w",
			req.Instrument, classifyStatus(http.StatusOK, resp.OrderCancelTransaction.Reason, "order cancelled"))
	}
	if resp.OrderFillTransaction == nil {
		return models.OrderResult{}, fmt.Errorf("submit order %s: no fill in response (%s %s)",
			req.Instrument, resp.ErrorCode, resp.ErrorMessage)
	}

	result := models.OrderResult{
		TradeID:   resp.OrderFillTransaction.ID,
		FillPrice: parseF(resp.OrderFillTransaction.Price),
	}
	if resp.OrderCreateTransaction != nil {
		result.OrderID = resp.OrderCreateTransaction.ID
	}

	// Bracket legs the broker did not attach on fill get follow-up orders.
	if req.StopLossPrice > 0 && resp.StopLossTransaction == nil {
		if err := c.attachLeg(ctx, account, result.TradeID, "stopLoss", req.StopLossPrice); err != nil {
			return result, fmt.Errorf("%w: stop-loss: %v", ErrBracket, err)
		}
	}
	if req.TakeProfitPrice > 0 && resp.TakeProfitTransaction == nil {
		if err := c.attachLeg(ctx, account, result.TradeID, "takeProfit", req.TakeProfitPrice); err != nil {
			return result, fmt.Errorf("%w: take-profit: %v", ErrBracket, err)
		}
	}

	return result, nil
}

func (c *Client) attachLeg(ctx context.Context, account models.AccountRef, tradeID, leg string, price float64) error {
	body := map[string]any{
		leg: map[string]string{
			"price":       formatPrice(price),
			"timeInForce": "GTC",
		},
	}
	u := fmt.Sprintf("%s/v3/accounts/%s/trades/%s/orders", c.baseURL(account.Environment), account.AccountID, tradeID)
	return c.doJSON(ctx, http.MethodPut, u, body, nil)
}

// ClosePosition flattens both sides for an instrument.
func (c *Client) ClosePosition(ctx context.Context, account models.AccountRef, instrument string) error {
	body := map[string]string{
		"longUnits":  "ALL",
		"shortUnits": "ALL",
	}
	u := fmt.Sprintf("%s/v3/accounts/%s/positions/%s/close", c.baseURL(account.Environment), account.AccountID, instrument)
	if err := c.doJSON(ctx, http.MethodPut, u, body, nil); err != nil {
		return fmt.Errorf("close position %s: %w", instrument, err)
	}
	return nil
}

func formatPrice(px float64) string {
	return strconv.FormatFloat(px, 'f', 5, 64)
}
