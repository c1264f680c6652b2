// Package contracts holds the fixed contract ABIs the orchestrator talks to and typed readers over them.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// StakeManager: root staking registry.
const stakeManagerABI = `[
{"inputs":[{"internalType":"uint256","name":"validatorId","type":"uint256"}],"name":"getValidatorContract","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"validatorId","type":"uint256"}],"name":"validatorStake","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"validatorId","type":"uint256"}],"name":"delegatedAmount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"validators","outputs":[
	{"internalType":"uint256","name":"amount","type":"uint256"},
	{"internalType":"uint256","name":"reward","type":"uint256"},
	{"internalType":"uint256","name":"activationEpoch","type":"uint256"},
	{"internalType":"uint256","name":"deactivationEpoch","type":"uint256"},
	{"internalType":"uint256","name":"jailTime","type":"uint256"},
	{"internalType":"address","name":"signer","type":"address"},
	{"internalType":"address","name":"contractAddress","type":"address"},
	{"internalType":"uint8","name":"status","type":"uint8"},
	{"internalType":"uint256","name":"commissionRate","type":"uint256"},
	{"internalType":"uint256","name":"lastCommissionUpdate","type":"uint256"},
	{"internalType":"uint256","name":"delegatorsReward","type":"uint256"},
	{"internalType":"uint256","name":"delegatedAmount","type":"uint256"},
	{"internalType":"uint256","name":"initialRewardPerStake","type":"uint256"}
],"stateMutability":"view","type":"function"}
]`

// ValidatorShare: per-validator delegation contract.
const validatorShareABI = `[
{"inputs":[{"internalType":"uint256","name":"_amount","type":"uint256"},{"internalType":"uint256","name":"_minSharesToMint","type":"uint256"}],"name":"buyVoucher","outputs":[{"internalType":"uint256","name":"amountToDeposit","type":"uint256"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"claimAmount","type":"uint256"},{"internalType":"uint256","name":"maximumSharesToBurn","type":"uint256"}],"name":"sellVoucher_new","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"withdrawRewards","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"exchangeRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getTotalStake","outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getLiquidRewards","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// RootChainManager: deposit manager on the root chain.
const depositManagerABI = `[
{"inputs":[{"internalType":"address","name":"user","type":"address"},{"internalType":"address","name":"rootToken","type":"address"},{"internalType":"bytes","name":"depositData","type":"bytes"}],"name":"depositFor","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"checkpointManagerAddress","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// RootChain: checkpoint registry.
const checkpointRegistryABI = `[
{"inputs":[],"name":"currentHeaderBlock","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"headerBlocks","outputs":[
	{"internalType":"bytes32","name":"root","type":"bytes32"},
	{"internalType":"uint256","name":"start","type":"uint256"},
	{"internalType":"uint256","name":"end","type":"uint256"},
	{"internalType":"uint256","name":"createdAt","type":"uint256"},
	{"internalType":"address","name":"proposer","type":"address"}
],"stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
{"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	StakeManagerABI       = mustParse(stakeManagerABI)
	ValidatorShareABI     = mustParse(validatorShareABI)
	DepositManagerABI     = mustParse(depositManagerABI)
	CheckpointRegistryABI = mustParse(checkpointRegistryABI)
	ERC20ABI              = mustParse(erc20ABI)
)

func mustParse(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("parse abi: " + err.Error())
	}
	return a
}
