// Package params bundles the immutable network constants a node needs:
// magic bytes, default port, genesis block, difficulty retarget
// parameters, the subsidy schedule, and a checkpoint list. Parameters are
// constructed once and passed by value; nothing in this package is mutated
// after construction (unlike the teacher's test-only mutable interval).
package params

import (
	"math/big"
	"time"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
)

// Params is the bundle of consensus and networking constants that must be
// shared by every node on a given network.
type Params struct {
	Name    string
	Magic   uint32
	Port    uint16
	Genesis GenesisBlock

	AddressHeader           byte
	DumpedPrivateKeyHeader  byte
	MaxTarget               *big.Int
	SubsidyHalvingInterval  uint32
	SpendableCoinbaseDepth  uint32
	RetargetInterval        uint32
	TargetTimespan          time.Duration
	TargetSpacing           time.Duration
	Checkpoints             map[uint32]chainhash.Hash
	ProtocolVersion         uint32
	MaxOrphanBlocks         int
	MaxReorgDepth           uint32
	MaxSigOpsPerBlock       int
	MaxBlockWeight          int
	MaxInvEntries           int
	MaxAddrEntries          int
}

// GenesisBlock carries the handful of fields needed to seed a chain at
// height zero; the chain package builds the genesis header from them
// when it seeds an empty store.
type GenesisBlock struct {
	Version    int32
	Time       uint32
	Bits       uint32
	Nonce      uint32
	MerkleRoot chainhash.Hash
	Hash       chainhash.Hash
}

func mustTarget(hex string) *big.Int {
	n := new(big.Int)
	n.SetString(hex, 16)
	return n
}

func mustHash(hex string) chainhash.Hash {
	h, err := chainhash.NewFromStr(hex)
	if err != nil {
		panic(err)
	}
	return h
}

// mainNetGenesis is the well-known mainnet genesis block header fields.
var mainNetGenesis = GenesisBlock{
	Version:    1,
	Time:       1231006505,
	Bits:       0x1d00ffff,
	Nonce:      2083236893,
	MerkleRoot: mustHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
	Hash:       mustHash("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
}

// MainNetParams returns the production network parameters.
func MainNetParams() Params {
	return Params{
		Name:                   "mainnet",
		Magic:                  0xF9BEB4D9,
		Port:                   8333,
		Genesis:                mainNetGenesis,
		AddressHeader:          0x00,
		DumpedPrivateKeyHeader: 0x80,
		MaxTarget:              mustTarget("00000000FFFF0000000000000000000000000000000000000000000000000000"),
		SubsidyHalvingInterval: 210000,
		SpendableCoinbaseDepth: 100,
		RetargetInterval:       2016,
		TargetTimespan:         14 * 24 * time.Hour,
		TargetSpacing:          10 * time.Minute,
		Checkpoints:            map[uint32]chainhash.Hash{},
		ProtocolVersion:        70001,
		MaxOrphanBlocks:        1000,
		MaxReorgDepth:          1000,
		MaxSigOpsPerBlock:      20000,
		MaxBlockWeight:         4_000_000,
		MaxInvEntries:          50000,
		MaxAddrEntries:         1024,
	}
}

// TestNetParams returns the public test network parameters.
func TestNetParams() Params {
	p := MainNetParams()
	p.Name = "testnet"
	p.Magic = 0x0B110907
	p.Port = 18333
	p.AddressHeader = 0x6F
	p.DumpedPrivateKeyHeader = 0xEF
	p.Checkpoints = map[uint32]chainhash.Hash{}
	return p
}

// RegTestParams returns parameters for a local regression-test network:
// trivial target, no checkpoints, short retarget so tests can exercise a
// difficulty adjustment without mining millions of blocks.
func RegTestParams() Params {
	p := MainNetParams()
	p.Name = "regtest"
	p.Magic = 0xFABFB5DA
	p.Port = 18444
	p.MaxTarget = mustTarget("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	p.RetargetInterval = 8
	p.TargetTimespan = 8 * 10 * time.Minute
	p.Checkpoints = map[uint32]chainhash.Hash{}
	p.MaxReorgDepth = 100
	// Regtest mines no real proof of work, so its genesis uses a trivial
	// bits value matching MaxTarget rather than mainnet's; Hash is left
	// zero so New's genesis seeding skips the mainnet-hash equality check.
	p.Genesis = GenesisBlock{
		Version: 1,
		Time:    1296688602,
		Bits:    chainmodel.BigToCompact(p.MaxTarget),
		Nonce:   0,
	}
	return p
}

// Subsidy computes the block reward at the given height, halving every
// SubsidyHalvingInterval blocks until it reaches zero.
func (p Params) Subsidy(height uint32) int64 {
	const initialSubsidy = 50 * 1e8
	halvings := height / p.SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}

// CheckpointHash returns the checkpointed hash at the given height, if any.
func (p Params) CheckpointHash(height uint32) (chainhash.Hash, bool) {
	h, ok := p.Checkpoints[height]
	return h, ok
}
