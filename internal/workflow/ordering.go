package workflow

import (
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

// HasMultipleOrders reports whether sequential gating applies. With a single
// order every signer is in one parallel stage.
func HasMultipleOrders(sigs []model.Signature) bool {
	if len(sigs) == 0 {
		return false
	}

	first := sigs[0].SigningOrder
	for _, s := range sigs[1:] {
		if s.SigningOrder != first {
			return true
		}
	}
	return false
}

// CanAct reports whether target may view without waiting or submit. A lower
// order only blocks while it is still PENDING, a decline counts as resolved.
func CanAct(sigs []model.Signature, target model.Signature) bool {
	if !HasMultipleOrders(sigs) {
		return true
	}

	for _, s := range sigs {
		if s.ID != target.ID && s.SigningOrder < target.SigningOrder && s.Status == constant.SignatureStatusPending {
			return false
		}
	}
	return true
}

// NextStage returns the PENDING signatures sharing the lowest PENDING order.
func NextStage(sigs []model.Signature) []model.Signature {
	minOrder, found := 0, false
	for _, s := range sigs {
		if s.Status != constant.SignatureStatusPending {
			continue
		}
		if !found || s.SigningOrder < minOrder {
			minOrder, found = s.SigningOrder, true
		}
	}
	if !found {
		return nil
	}

	var stage []model.Signature
	for _, s := range sigs {
		if s.Status == constant.SignatureStatusPending && s.SigningOrder == minOrder {
			stage = append(stage, s)
		}
	}
	return stage
}

// AllSigned is false for an empty set and whenever any signature is not SIGNED,
// so a declined signer keeps the document from completing.
func AllSigned(sigs []model.Signature) bool {
	if len(sigs) == 0 {
		return false
	}

	for _, s := range sigs {
		if s.Status != constant.SignatureStatusSigned {
			return false
		}
	}
	return true
}
