package credits

import (
	"fmt"

	"vidscribe/config"
	"vidscribe/errors"
	"vidscribe/models"
)

// Pricing maps (quality, measured minutes) to a credit cost. All rates
// come from validated configuration; construction fails on any
// non-positive rate so a misconfigured process never prices a job.
type Pricing struct {
	captionFirstCost  int
	standardBlockRate int
	premiumBlockRate  int
	summaryCost       int
	contentIdeasCost  int
	blockMinutes      int
}

func NewPricing(cfg config.CreditsConfig) (*Pricing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing configuration: %w", err)
	}
	return &Pricing{
		captionFirstCost:  cfg.CaptionFirstCost,
		standardBlockRate: cfg.StandardBlockRate,
		premiumBlockRate:  cfg.PremiumBlockRate,
		summaryCost:       cfg.SummaryCost,
		contentIdeasCost:  cfg.ContentIdeasCost,
		blockMinutes:      cfg.BlockMinutes,
	}, nil
}

// Cost is a pure function of its inputs. Caption-first jobs cost a
// flat rate regardless of length; the other tiers bill per started
// block of blockMinutes, minimum one block.
func (p *Pricing) Cost(quality models.Quality, minutes *float64) (int, error) {
	const op = "Pricing.Cost"

	switch quality {
	case models.QualityCaptionFirst:
		return p.captionFirstCost, nil
	case models.QualityStandard:
		blocks, err := p.blocks(op, minutes)
		if err != nil {
			return 0, err
		}
		return blocks * p.standardBlockRate, nil
	case models.QualityPremium:
		blocks, err := p.blocks(op, minutes)
		if err != nil {
			return 0, err
		}
		return blocks * p.premiumBlockRate, nil
	default:
		return 0, errors.InvalidInput(op, nil, fmt.Sprintf("unknown quality: %s", quality))
	}
}

func (p *Pricing) blocks(op string, minutes *float64) (int, error) {
	if minutes == nil {
		return 0, errors.InvalidInput(op, nil, "duration is required for length-dependent pricing")
	}
	if *minutes < 0 {
		return 0, errors.InvalidInput(op, nil, "duration must not be negative")
	}

	blocks := int(*minutes) / p.blockMinutes
	if float64(blocks*p.blockMinutes) < *minutes {
		blocks++
	}
	if blocks < 1 {
		blocks = 1
	}
	return blocks, nil
}

// OperationCost prices the fixed-cost derivative operations.
func (p *Pricing) OperationCost(kind models.TransactionKind) (int, error) {
	const op = "Pricing.OperationCost"

	switch kind {
	case models.TxSummary:
		return p.summaryCost, nil
	case models.TxContentIdeas:
		return p.contentIdeasCost, nil
	case models.TxCaptionDownload:
		return p.captionFirstCost, nil
	default:
		return 0, errors.InvalidInput(op, nil, fmt.Sprintf("no fixed cost for kind: %s", kind))
	}
}
