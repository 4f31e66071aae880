package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"memelend/core/oracle"
	"memelend/crypto"
	"memelend/native/fees"
	"memelend/native/lending"
	"memelend/services/lendingd/protocol"
)

func (s *Server) adminRoutes(r chi.Router) {
	r.Use(RequireScope(ScopeAdmin))

	r.Post("/pause", s.adminAction("lending", func(tx protocol.Tx, c crypto.Address) (any, error) {
		return ok(tx.Lending.Pause(c))
	}))
	r.Post("/resume", s.adminAction("lending", func(tx protocol.Tx, c crypto.Address) (any, error) {
		return ok(tx.Lending.Resume(c))
	}))
	r.Post("/admin-transfer/initiate", s.initiateAdminTransfer)
	r.Post("/admin-transfer/cancel", s.adminAction("lending", func(tx protocol.Tx, c crypto.Address) (any, error) {
		return ok(tx.Lending.CancelAdminTransfer(c))
	}))
	r.Post("/wallets", s.updateWallets)
	r.Post("/fees", s.updateFees)
	r.Post("/liquidator", s.addressAction(func(tx protocol.Tx, c, a crypto.Address) error {
		return tx.Lending.UpdateLiquidator(c, a)
	}))
	r.Post("/price-authority", s.addressAction(func(tx protocol.Tx, c, a crypto.Address) error {
		return tx.Lending.UpdatePriceAuthority(c, a)
	}))

	r.Post("/tokens", s.whitelistToken)
	r.Post("/tokens/{mint}", s.updateToken)
	r.Post("/tokens/{mint}/blacklist", s.mintAction(func(tx protocol.Tx, c, mint crypto.Address) error {
		return tx.Lending.BlacklistToken(c, mint)
	}))
	r.Post("/tokens/{mint}/unblacklist", s.mintAction(func(tx protocol.Tx, c, mint crypto.Address) error {
		return tx.Lending.UnblacklistToken(c, mint)
	}))

	r.Post("/treasury/fund", s.amountAction("lending", func(tx protocol.Tx, c crypto.Address, amount uint64) (uint64, error) {
		return tx.Lending.FundTreasury(c, amount)
	}))
	r.Post("/treasury/withdraw", s.amountAction("lending", func(tx protocol.Tx, c crypto.Address, amount uint64) (uint64, error) {
		return tx.Lending.WithdrawTreasury(c, amount)
	}))
	r.Post("/treasury/emergency-drain", s.adminAction("lending", func(tx protocol.Tx, c crypto.Address) (any, error) {
		drained, err := tx.Lending.EmergencyDrain(c)
		return map[string]uint64{"amount": drained}, err
	}))

	r.Route("/staking", func(sr chi.Router) {
		sr.Post("/pause", s.adminAction("staking", func(tx protocol.Tx, c crypto.Address) (any, error) {
			return ok(tx.Staking.PauseStaking(c))
		}))
		sr.Post("/resume", s.adminAction("staking", func(tx protocol.Tx, c crypto.Address) (any, error) {
			return ok(tx.Staking.ResumeStaking(c))
		}))
		sr.Post("/epoch-duration", s.updateEpochDuration)
		sr.Post("/force-advance", s.adminAction("staking", func(tx protocol.Tx, c crypto.Address) (any, error) {
			pool, err := tx.Staking.ForceAdvanceEpoch(c)
			if err != nil {
				return nil, err
			}
			return newPoolView(pool), nil
		}))
		sr.Post("/emergency-withdraw", s.adminAction("staking", func(tx protocol.Tx, c crypto.Address) (any, error) {
			amount, err := tx.Staking.EmergencyWithdraw(c)
			return map[string]uint64{"amount": amount}, err
		}))
		sr.Post("/drain-rewards", s.adminAction("staking", func(tx protocol.Tx, c crypto.Address) (any, error) {
			amount, err := tx.Staking.EmergencyDrainRewards(c)
			return map[string]uint64{"amount": amount}, err
		}))
	})

	r.Post("/fees/split", s.updateFeeSplit)

	if s.cfg.LedgerAdmin {
		r.Put("/accounts/{addr}", s.putAccount)
		r.Post("/credit", s.credit)
	}
}

func ok(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) adminAction(module string, fn func(tx protocol.Tx, caller crypto.Address) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := caller(r)
		s.exec(w, r, module, http.StatusOK, func(tx protocol.Tx) (any, error) {
			return fn(tx, c)
		})
	}
}

type addressRequest struct {
	Address crypto.Address `json:"address"`
}

func (s *Server) addressAction(fn func(tx protocol.Tx, caller, addr crypto.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addressRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c := caller(r)
		s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
			return ok(fn(tx, c, req.Address))
		})
	}
}

func (s *Server) mintAction(fn func(tx protocol.Tx, caller, mint crypto.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mint, valid := pathAddress(w, r, "mint")
		if !valid {
			return
		}
		c := caller(r)
		s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
			return ok(fn(tx, c, mint))
		})
	}
}

func (s *Server) amountAction(module string, fn func(tx protocol.Tx, caller crypto.Address, amount uint64) (uint64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c := caller(r)
		s.exec(w, r, module, http.StatusOK, func(tx protocol.Tx) (any, error) {
			balance, err := fn(tx, c, req.Amount)
			if err != nil {
				return nil, err
			}
			return map[string]uint64{"balance": balance}, nil
		})
	}
}

type adminTransferRequest struct {
	Pending crypto.Address `json:"pending"`
}

func (s *Server) initiateAdminTransfer(w http.ResponseWriter, r *http.Request) {
	var req adminTransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		if err := tx.Lending.InitiateAdminTransfer(c, req.Pending); err != nil {
			return nil, err
		}
		ps, err := tx.Lending.ProtocolState()
		if err != nil {
			return nil, err
		}
		return map[string]any{"pendingAdmin": ps.PendingAdmin, "executableAt": ps.AdminTransferAt}, nil
	})
}

// acceptAdminTransfer is called by the pending admin, who does not hold the
// admin scope yet.
func (s *Server) acceptAdminTransfer(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		return ok(tx.Lending.AcceptAdminTransfer(c))
	})
}

type walletsRequest struct {
	Operations         *crypto.Address `json:"operations,omitempty"`
	Buyback            *crypto.Address `json:"buyback,omitempty"`
	StakingRewardVault *crypto.Address `json:"stakingRewardVault,omitempty"`
}

func (s *Server) updateWallets(w http.ResponseWriter, r *http.Request) {
	var req walletsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		return ok(tx.Lending.UpdateWallets(c, lending.WalletUpdate{
			Operations:         req.Operations,
			Buyback:            req.Buyback,
			StakingRewardVault: req.StakingRewardVault,
		}))
	})
}

type feesRequest struct {
	ProtocolFeeBps   *uint64 `json:"protocolFeeBps,omitempty"`
	TreasuryFeeBps   *uint64 `json:"treasuryFeeBps,omitempty"`
	StakingFeeBps    *uint64 `json:"stakingFeeBps,omitempty"`
	OperationsFeeBps *uint64 `json:"operationsFeeBps,omitempty"`
}

func (s *Server) updateFees(w http.ResponseWriter, r *http.Request) {
	var req feesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		return ok(tx.Lending.UpdateFees(c, lending.FeeUpdate{
			ProtocolFeeBps:   req.ProtocolFeeBps,
			TreasuryFeeBps:   req.TreasuryFeeBps,
			StakingFeeBps:    req.StakingFeeBps,
			OperationsFeeBps: req.OperationsFeeBps,
		}))
	})
}

type whitelistRequest struct {
	Mint            crypto.Address `json:"mint"`
	Tier            uint8          `json:"tier"`
	PoolAddress     crypto.Address `json:"poolAddress"`
	PoolType        uint8          `json:"poolType"`
	MinLoan         uint64         `json:"minLoan"`
	MaxLoan         uint64         `json:"maxLoan"`
	IsProtocolToken bool           `json:"isProtocolToken"`
}

func (s *Server) whitelistToken(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tier, err := lending.ParseTokenTier(req.Tier)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), 0)
		return
	}
	kind, err := oracle.ParsePoolType(req.PoolType)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), 0)
		return
	}
	c := caller(r)
	s.exec(w, r, "lending", http.StatusCreated, func(tx protocol.Tx) (any, error) {
		pool, err := protocol.PoolSnapshot(tx.State, req.PoolAddress, kind, s.now())
		if err != nil {
			return nil, err
		}
		cfg, err := tx.Lending.WhitelistToken(c, lending.WhitelistRequest{
			Mint:            req.Mint,
			Tier:            tier,
			PoolAddress:     req.PoolAddress,
			PoolType:        kind,
			MinLoan:         req.MinLoan,
			MaxLoan:         req.MaxLoan,
			IsProtocolToken: req.IsProtocolToken,
			Pool:            &pool,
		})
		if err != nil {
			return nil, err
		}
		return newTokenView(cfg), nil
	})
}

type tokenUpdateRequest struct {
	Enabled *bool   `json:"enabled,omitempty"`
	LtvBps  *uint64 `json:"ltvBps,omitempty"`
	MinLoan *uint64 `json:"minLoan,omitempty"`
	MaxLoan *uint64 `json:"maxLoan,omitempty"`
}

func (s *Server) updateToken(w http.ResponseWriter, r *http.Request) {
	mint, valid := pathAddress(w, r, "mint")
	if !valid {
		return
	}
	var req tokenUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "lending", http.StatusOK, func(tx protocol.Tx) (any, error) {
		cfg, err := tx.Lending.UpdateTokenConfig(c, mint, lending.TokenUpdate{
			Enabled: req.Enabled,
			LtvBps:  req.LtvBps,
			MinLoan: req.MinLoan,
			MaxLoan: req.MaxLoan,
		})
		if err != nil {
			return nil, err
		}
		return newTokenView(cfg), nil
	})
}

type epochDurationRequest struct {
	Seconds int64 `json:"seconds"`
}

func (s *Server) updateEpochDuration(w http.ResponseWriter, r *http.Request) {
	var req epochDurationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "staking", http.StatusOK, func(tx protocol.Tx) (any, error) {
		return ok(tx.Staking.UpdateEpochDuration(c, req.Seconds))
	})
}

type splitRequest struct {
	TreasuryBps   uint64 `json:"treasuryBps"`
	StakingBps    uint64 `json:"stakingBps"`
	OperationsBps uint64 `json:"operationsBps"`
}

func (s *Server) updateFeeSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := caller(r)
	s.exec(w, r, "fees", http.StatusOK, func(tx protocol.Tx) (any, error) {
		rec, err := tx.Fees.UpdateSplit(c, fees.Split{
			TreasuryBps:   req.TreasuryBps,
			StakingBps:    req.StakingBps,
			OperationsBps: req.OperationsBps,
		})
		if err != nil {
			return nil, err
		}
		return renderReceiver(tx, rec)
	})
}

type accountRequest struct {
	Owner crypto.Address `json:"owner"`
	Data  []byte         `json:"data"`
}

// putAccount publishes a raw account, such as a pool or vault snapshot.
func (s *Server) putAccount(w http.ResponseWriter, r *http.Request) {
	addr, valid := pathAddress(w, r, "addr")
	if !valid {
		return
	}
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.exec(w, r, "ledger", http.StatusOK, func(tx protocol.Tx) (any, error) {
		return ok(tx.State.PutAccount(addr, req.Owner, req.Data))
	})
}

type creditRequest struct {
	Account crypto.Address  `json:"account"`
	Mint    *crypto.Address `json:"mint,omitempty"`
	Amount  uint64          `json:"amount"`
}

// credit mints lamports, or tokens of Mint, into an account.
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.exec(w, r, "ledger", http.StatusOK, func(tx protocol.Tx) (any, error) {
		if req.Mint == nil {
			if err := tx.State.CreditLamports(req.Account, req.Amount); err != nil {
				return nil, err
			}
			balance, err := tx.State.Lamports(req.Account)
			return map[string]uint64{"balance": balance}, err
		}
		if err := tx.State.MintTokens(req.Account, *req.Mint, req.Amount); err != nil {
			return nil, err
		}
		balance, err := tx.State.TokenBalance(req.Account, *req.Mint)
		return map[string]uint64{"balance": balance}, err
	})
}
