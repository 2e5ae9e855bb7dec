package dto

import "time"

// PayoutRequest captures POST /treasury/payouts payload.
type PayoutRequest struct {
	To     string `json:"to" validate:"required"`
	Amount int64  `json:"amount"`
}

// RescueRequest captures POST /admin/rescue payload. Asset is explicit
// because rescue exists to recover tokens outside the settlement asset.
type RescueRequest struct {
	Asset  string `json:"asset" validate:"required"`
	To     string `json:"to" validate:"required"`
	Amount int64  `json:"amount"`
}

// ProposalDurationRequest captures PUT /admin/settings/proposal-duration.
type ProposalDurationRequest struct {
	Seconds int64 `json:"seconds"`
}

// TreasuryResponse is the GET /treasury payload. TotalIn and TotalOut
// come from the journal; Balance comes from the ledger.
type TreasuryResponse struct {
	Asset     string    `json:"asset"`
	Balance   int64     `json:"balance"`
	TotalIn   int64     `json:"totalIn"`
	TotalOut  int64     `json:"totalOut"`
	FetchedAt time.Time `json:"fetchedAt"`
}
