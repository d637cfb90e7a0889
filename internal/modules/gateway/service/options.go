package service

import (
	"context"

	"github.com/pkg/errors"

	"bracket_bot/internal/models"
)

// OptionChain: экспирации и страйки по базовому активу, мост сам выбирает биржу и trading class.
func (c *Client) OptionChain(ctx context.Context, underlying models.Instrument) (models.OptionChain, error) {
	var raw optionChainDTO
	if err := c.call(ctx, opOptChain, toContractDTO(models.Contract{Instrument: underlying}), &raw); err != nil {
		return models.OptionChain{}, err
	}
	chain := raw.model()
	if len(chain.Strikes) == 0 || len(chain.Expirations) == 0 {
		return chain, errors.Wrapf(models.ErrResolution, "no option chain for %s", underlying.Name())
	}
	return chain, nil
}

// QuoteOptions: котировки по списку опционов; нерезолвнутые мост просто не возвращает.
func (c *Client) QuoteOptions(ctx context.Context, insts []models.Instrument) ([]models.OptionQuote, error) {
	args := make([]contractDTO, 0, len(insts))
	for _, inst := range insts {
		args = append(args, toContractDTO(models.Contract{Instrument: inst}))
	}
	var raw []tickerDTO
	if err := c.call(ctx, opTickers, args, &raw); err != nil {
		return nil, err
	}
	out := make([]models.OptionQuote, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.model())
	}
	return out, nil
}
