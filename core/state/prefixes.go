package state

import (
	"encoding/binary"

	"memelend/crypto"
)

var (
	protocolStateKey  = []byte("lending/protocol")
	tokenConfigPrefix = []byte("lending/token/")
	loanPrefix        = []byte("lending/loan/")
	exposurePrefix    = []byte("lending/exposure/")

	stakingPoolKey   = []byte("staking/pool")
	checkpointPrefix = []byte("staking/checkpoint/")

	feeReceiverKey = []byte("fees/receiver")

	accountPrefix  = []byte("account/")
	lamportsPrefix = []byte("lamports/")
	tokenPrefix    = []byte("token/")
	supplyPrefix   = []byte("supply/")
)

func addressKey(prefix []byte, addr crypto.Address) []byte {
	buf := make([]byte, len(prefix)+crypto.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

func checkpointKey(epoch uint64) []byte {
	buf := make([]byte, len(checkpointPrefix)+8)
	copy(buf, checkpointPrefix)
	binary.BigEndian.PutUint64(buf[len(checkpointPrefix):], epoch)
	return buf
}

// tokenKey groups token accounts by mint so a mint's holders are contiguous.
func tokenKey(mint, account crypto.Address) []byte {
	buf := make([]byte, len(tokenPrefix)+2*crypto.AddressLength)
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], mint[:])
	copy(buf[len(tokenPrefix)+crypto.AddressLength:], account[:])
	return buf
}
