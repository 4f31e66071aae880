package server

import (
	"net/http"

	"memelend/crypto"
	"memelend/native/fees"
	"memelend/native/staking"
	"memelend/services/lendingd/protocol"
)

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) stake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		u, err := tx.Staking.Stake(owner, req.Amount)
		if err != nil {
			return nil, err
		}
		return newStakeView(u), nil
	})
}

func (s *Server) unstake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	owner := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		u, err := tx.Staking.Unstake(owner, req.Amount)
		if err != nil {
			return nil, err
		}
		return newStakeView(u), nil
	})
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	owner := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		paid, err := tx.Staking.ClaimRewards(owner)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"amount": paid}, nil
	})
}

func (s *Server) depositRewards(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	depositor := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		pool, err := tx.Staking.DepositRewards(depositor, req.Amount)
		if err != nil {
			return nil, err
		}
		return newPoolView(pool), nil
	})
}

func (s *Server) advanceEpoch(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		closed, err := tx.Staking.AdvanceEpoch()
		if err != nil {
			return nil, err
		}
		pool, err := tx.Staking.Pool()
		if err != nil {
			return nil, err
		}
		return map[string]any{"closed": closed, "pool": newPoolView(pool)}, nil
	})
}

type distributeRequest struct {
	// Owners selects the stakers to pay; empty means the first batch of
	// every known staker.
	Owners []crypto.Address `json:"owners,omitempty"`
}

type distributionResponse struct {
	Epoch      uint64 `json:"epoch"`
	Paid       uint64 `json:"paid"`
	Recipients uint64 `json:"recipients"`
	Skipped    uint64 `json:"skipped"`
	Exhausted  bool   `json:"exhausted"`
}

func (s *Server) distributeRewards(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cranker := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		var pairs []staking.StakerPair
		if len(req.Owners) > 0 {
			pool := staking.PoolAddress()
			for _, owner := range req.Owners {
				pairs = append(pairs, staking.StakerPair{Record: staking.UserStakeAddress(pool, owner), Wallet: owner})
			}
		} else {
			all, err := tx.State.StakerPairs()
			if err != nil {
				return nil, err
			}
			if len(all) > staking.MaxDistributionBatch {
				all = all[:staking.MaxDistributionBatch]
			}
			pairs = all
		}
		report, err := tx.Staking.DistributeRewards(cranker, pairs)
		if err != nil {
			return nil, err
		}
		return distributionResponse{
			Epoch:      report.Epoch,
			Paid:       report.Paid,
			Recipients: report.Recipients,
			Skipped:    report.Skipped,
			Exhausted:  report.Exhausted,
		}, nil
	})
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		pool, err := tx.Staking.Pool()
		if err != nil {
			return nil, err
		}
		return newPoolView(pool), nil
	})
}

func (s *Server) getUserStake(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		u, err := tx.Staking.UserStake(owner)
		if err != nil {
			return nil, err
		}
		return newStakeView(u), nil
	})
}

func (s *Server) recordFees(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payer := caller(r)
	s.exec(w, r, "fees", http.StatusOK, func(tx protocol.Tx) (any, error) {
		rec, err := tx.Fees.RecordFees(payer, req.Amount)
		if err != nil {
			return nil, err
		}
		return renderReceiver(tx, rec)
	})
}

type feeDistributionResponse struct {
	Amount     uint64 `json:"amount"`
	Treasury   uint64 `json:"treasury"`
	Staking    uint64 `json:"staking"`
	Operations uint64 `json:"operations"`
}

func (s *Server) distributeFees(w http.ResponseWriter, r *http.Request) {
	cranker := caller(r)
	s.exec(w, r, "fees", http.StatusOK, func(tx protocol.Tx) (any, error) {
		d, err := tx.Fees.DistributeCreatorFees(cranker)
		if err != nil {
			return nil, err
		}
		return feeDistributionResponse{
			Amount:     d.Amount,
			Treasury:   d.Treasury,
			Staking:    d.Staking,
			Operations: d.Operations,
		}, nil
	})
}

func (s *Server) getReceiver(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, func(tx protocol.Tx) (any, error) {
		rec, err := tx.Fees.Receiver()
		if err != nil {
			return nil, err
		}
		return renderReceiver(tx, rec)
	})
}

func renderReceiver(tx protocol.Tx, rec *fees.Receiver) (any, error) {
	balance, err := tx.State.Lamports(fees.ReceiverAddress())
	if err != nil {
		return nil, err
	}
	return newReceiverView(rec, balance), nil
}
