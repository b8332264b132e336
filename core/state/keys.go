package state

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	balancePrefix    = []byte("token/balance/")
	allowancePrefix  = []byte("token/allowance/")
	supplyPrefix     = []byte("token/supply/")
	collateralPrefix = []byte("dsc/collateral/")
	debtPrefix       = []byte("dsc/debt/")
	accountIndexKey  = ethcrypto.Keccak256([]byte("dsc/accounts"))
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func balanceKey(token, holder common.Address) []byte {
	return joinKey(balancePrefix, token.Bytes(), holder.Bytes())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return joinKey(allowancePrefix, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func supplyKey(token common.Address) []byte {
	return joinKey(supplyPrefix, token.Bytes())
}

func collateralKey(account, asset common.Address) []byte {
	return joinKey(collateralPrefix, account.Bytes(), asset.Bytes())
}

func debtKey(account common.Address) []byte {
	return joinKey(debtPrefix, account.Bytes())
}
