package service

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"bracket_bot/internal/models"
)

func (c *Client) ResolveInstrument(ctx context.Context, inst models.Instrument) (models.Contract, error) {
	var out []contractDTO
	if err := c.call(ctx, opResolve, toContractDTO(models.Contract{Instrument: inst}), &out); err != nil {
		return models.Contract{}, err
	}
	switch len(out) {
	case 0:
		return models.Contract{}, errors.Wrapf(models.ErrResolution, "no contract for %s", inst.Name())
	case 1:
		return out[0].model(), nil
	}
	return models.Contract{}, errors.Wrapf(models.ErrResolution, "%s is ambiguous: %d contracts", inst.Name(), len(out))
}

func (c *Client) SubmitOrder(ctx context.Context, contract models.Contract, order models.OrderRequest) (models.OrderHandle, error) {
	if order.Body == nil {
		return models.OrderHandle{}, errors.New("order without body")
	}
	var h handleDTO
	err := c.call(ctx, opSubmit, submitArgs{Contract: toContractDTO(contract), Order: toOrderDTO(order)}, &h)
	return h.model(), err
}

func (c *Client) CancelOrder(ctx context.Context, handle models.OrderHandle) error {
	return c.call(ctx, opCancel, toHandleDTO(handle), nil)
}

func (c *Client) OrderState(ctx context.Context, handle models.OrderHandle) (models.OrderState, error) {
	var st orderStateDTO
	err := c.call(ctx, opOrderState, toHandleDTO(handle), &st)
	return st.model(), err
}

func (c *Client) PollExecutions(ctx context.Context) ([]models.Fill, error) {
	var raw []fillDTO
	if err := c.call(ctx, opExecutions, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Fill, 0, len(raw))
	for _, f := range raw {
		out = append(out, f.model())
	}
	return out, nil
}

func (c *Client) QueryOpenOrders(ctx context.Context) ([]models.OpenOrder, error) {
	var raw []openOrderDTO
	if err := c.call(ctx, opOpenOrders, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.OpenOrder, 0, len(raw))
	for _, o := range raw {
		out = append(out, o.model())
	}
	return out, nil
}

func (c *Client) QueryPositions(ctx context.Context) ([]models.PositionRecord, error) {
	var raw []positionDTO
	if err := c.call(ctx, opPositions, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.PositionRecord, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.model())
	}
	return out, nil
}

// FetchBars: исторические свечи, window вида "1 D"/"30 S", barSize вида "30 secs".
func (c *Client) FetchBars(ctx context.Context, contract models.Contract, window, barSize string) ([]models.Bar, error) {
	var raw []barDTO
	err := c.call(ctx, opBars, barsArgs{
		Contract:   toContractDTO(contract),
		Duration:   window,
		BarSize:    barSize,
		WhatToShow: whatToShow(contract.Instrument),
	}, &raw)
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, len(raw))
	for _, b := range raw {
		out = append(out, b.model())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
