// Package signer provides the account that authorizes orchestrator transactions.
package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"stakebridge/internal/network"
	"stakebridge/internal/stakeerr"
)

// Signer is an account able to sign transactions for the chain it is bound to.
type Signer interface {
	Address() common.Address
	Nonce(ctx context.Context) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SignTx(tx *types.Transaction) (*types.Transaction, error)
	ChainID() *big.Int
}

// KeySigner signs with an in-memory secp256k1 key against one network client.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	client  *network.Client
	chainID *big.Int
}

// FromHex parses a 0x-prefixed or bare hex private key.
func FromHex(privateKeyHex string, client *network.Client) (*KeySigner, error) {
	privateKeyHex = strings.TrimSpace(privateKeyHex)
	if privateKeyHex == "" {
		return nil, stakeerr.New(stakeerr.MissingSigner, "no private key configured")
	}
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X"))
	if err != nil {
		return nil, stakeerr.Wrap(err, stakeerr.MissingSigner, "parse private key")
	}
	return New(priv, client)
}

func New(key *ecdsa.PrivateKey, client *network.Client) (*KeySigner, error) {
	if key == nil {
		return nil, stakeerr.New(stakeerr.MissingSigner, "nil private key")
	}
	if client == nil {
		return nil, stakeerr.New(stakeerr.NetworkUnavailable, "signer needs a network client")
	}
	return &KeySigner{
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		client:  client,
		chainID: client.ChainID(),
	}, nil
}

func (s *KeySigner) Address() common.Address { return s.from }

func (s *KeySigner) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// Nonce reads the pending nonce. There is no reservation: concurrent writers race.
func (s *KeySigner) Nonce(ctx context.Context) (uint64, error) {
	n, err := s.client.Backend().PendingNonceAt(ctx, s.from)
	if err != nil {
		return 0, errors.Wrap(err, "get nonce")
	}
	return n, nil
}

// EstimateGas estimates msg as sent from this account.
func (s *KeySigner) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	msg.From = s.from
	return s.client.Backend().EstimateGas(ctx, msg)
}

func (s *KeySigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign tx")
	}
	return signed, nil
}
