package network

import (
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// IsRevert reports whether err is a contract revert returned by eth_call or eth_estimateGas,
// as opposed to a transport failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
