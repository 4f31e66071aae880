package server

import (
	"net/http"

	"memelend/crypto"
	"memelend/native/lending"
	"memelend/services/lendingd/protocol"
)

type createLoanRequest struct {
	Mint       crypto.Address `json:"mint"`
	Collateral uint64         `json:"collateral"`
	Duration   int64          `json:"duration"`
}

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	borrower := caller(r)
	s.exec(w, r, "lending", http.StatusCreated, func(tx protocol.Tx) (any, error) {
		pool, err := protocol.TokenPool(tx, req.Mint, s.now())
		if err != nil {
			return nil, err
		}
		loan, err := tx.Lending.CreateLoan(borrower, req.Mint, req.Collateral, req.Duration, pool)
		if err != nil {
			return nil, err
		}
		return newLoanView(loan), nil
	})
}

type repayResponse struct {
	Loan          loanView `json:"loan"`
	Principal     uint64   `json:"principal"`
	Fee           uint64   `json:"fee"`
	TreasuryFee   uint64   `json:"treasuryFee"`
	StakingFee    uint64   `json:"stakingFee"`
	OperationsFee uint64   `json:"operationsFee"`
}

func (s *Server) repayLoan(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	borrower := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		receipt, err := tx.Lending.RepayLoan(borrower, addr)
		if err != nil {
			return nil, err
		}
		return repayResponse{
			Loan:          newLoanView(receipt.Loan),
			Principal:     receipt.Principal,
			Fee:           receipt.Fee,
			TreasuryFee:   receipt.TreasuryFee,
			StakingFee:    receipt.StakingFee,
			OperationsFee: receipt.OperationsFee,
		}, nil
	})
}

type liquidateRequest struct {
	// MinOut defaults to the tightest bound the engine accepts.
	MinOut *uint64 `json:"minOut,omitempty"`
	Route  []byte  `json:"route,omitempty"`
}

type liquidationResponse struct {
	Loan          loanView `json:"loan"`
	Reason        string   `json:"reason"`
	Price         uint64   `json:"price"`
	Expected      uint64   `json:"expected"`
	MinOut        uint64   `json:"minOut"`
	Proceeds      uint64   `json:"proceeds"`
	TreasuryShare uint64   `json:"treasuryShare"`
	OpsShare      uint64   `json:"opsShare"`
	Venue         string   `json:"venue,omitempty"`
}

func (s *Server) liquidateLoan(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	var req liquidateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	liquidator := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		loan, err := tx.Lending.GetLoan(addr)
		if err != nil {
			return nil, err
		}
		pool, err := protocol.LoanPool(tx, loan, s.now())
		if err != nil {
			return nil, err
		}
		var minOut uint64
		if req.MinOut != nil {
			minOut = *req.MinOut
		} else if minOut, err = protocol.DefaultMinOut(tx, loan, pool); err != nil {
			return nil, err
		}
		receipt, err := tx.Lending.Liquidate(liquidator, addr, minOut, req.Route, pool)
		if err != nil {
			return nil, err
		}
		return liquidationResponse{
			Loan:          newLoanView(receipt.Loan),
			Reason:        receipt.Reason.String(),
			Price:         receipt.Price,
			Expected:      receipt.Expected,
			MinOut:        minOut,
			Proceeds:      receipt.Proceeds,
			TreasuryShare: receipt.TreasuryShare,
			OpsShare:      receipt.OpsShare,
			Venue:         receipt.Venue,
		}, nil
	})
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "addr")
	if !ok {
		return
	}
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		loan, err := tx.Lending.GetLoan(addr)
		if err != nil {
			return nil, err
		}
		return newLoanView(loan), nil
	})
}

// listLoans returns active loans, optionally only those of one borrower.
func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	var borrower crypto.Address
	if v := r.URL.Query().Get("borrower"); v != "" {
		addr, err := crypto.ParseAddress(v)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "bad_request", "invalid borrower", 0)
			return
		}
		borrower = addr
	}
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		loans, err := tx.State.ActiveLoans()
		if err != nil {
			return nil, err
		}
		out := make([]loanView, 0, len(loans))
		for _, l := range loans {
			if !borrower.IsZero() && l.Borrower != borrower {
				continue
			}
			out = append(out, newLoanView(l))
		}
		return map[string]any{"loans": out}, nil
	})
}

func (s *Server) getProtocol(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		ps, err := tx.Lending.ProtocolState()
		if err != nil {
			return nil, err
		}
		balance, err := tx.State.Lamports(lending.TreasuryAddress())
		if err != nil {
			return nil, err
		}
		return newProtocolView(ps, balance), nil
	})
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathAddress(w, r, "mint")
	if !ok {
		return
	}
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		cfg, err := tx.Lending.GetTokenConfig(mint)
		if err != nil {
			return nil, err
		}
		return newTokenView(cfg), nil
	})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		cfgs, err := tx.State.TokenConfigs()
		if err != nil {
			return nil, err
		}
		out := make([]tokenView, 0, len(cfgs))
		for _, c := range cfgs {
			out = append(out, newTokenView(c))
		}
		return map[string]any{"tokens": out}, nil
	})
}
