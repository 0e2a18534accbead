package program

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
)

// CreatePositionAccounts is the positional account list for
// create_position_with_liquidity.
type CreatePositionAccounts struct {
	Authority            solana.PublicKey
	VaultConfig          solana.PublicKey
	VaultPDA             solana.PublicKey
	PositionTracker      solana.PublicKey
	Whirlpool            solana.PublicKey
	WhirlpoolPosition    solana.PublicKey
	PositionMint         solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenAccountA        solana.PublicKey
	TokenAccountB        solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
	TickArrayLower       solana.PublicKey
	TickArrayUpper       solana.PublicKey
	WhirlpoolProgram     solana.PublicKey
}

// CreatePositionArgs are the borsh-encoded instruction arguments.
type CreatePositionArgs struct {
	EncryptedAmountA []byte
	EncryptedAmountB []byte
	AmountType       uint8
	TickLower        int32
	TickUpper        int32
	Liquidity        uint128.Uint128
	TokenMaxA        uint64
	TokenMaxB        uint64
	MaxSlippageBps   *uint16 // nil falls back to the config default
}

// CreatePosition builds the create_position_with_liquidity instruction.
func CreatePosition(acc CreatePositionAccounts, args CreatePositionArgs) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator("create_position_with_liquidity"))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(args.EncryptedAmountA, true); err != nil {
		return nil, fmt.Errorf("encode encrypted amount A: %w", err)
	}
	if err := enc.WriteBytes(args.EncryptedAmountB, true); err != nil {
		return nil, fmt.Errorf("encode encrypted amount B: %w", err)
	}
	if err := enc.WriteUint8(args.AmountType); err != nil {
		return nil, err
	}
	if err := enc.WriteInt32(args.TickLower, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteInt32(args.TickUpper, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeUint128(enc, args.Liquidity); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(args.TokenMaxA, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(args.TokenMaxB, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeOptionU16(enc, args.MaxSlippageBps); err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Authority).WRITE().SIGNER(),
		solana.Meta(acc.VaultConfig),
		solana.Meta(acc.VaultPDA).WRITE(),
		solana.Meta(acc.PositionTracker).WRITE(),
		solana.Meta(acc.Whirlpool),
		solana.Meta(acc.WhirlpoolPosition).WRITE(),
		solana.Meta(acc.PositionMint).WRITE(),
		solana.Meta(acc.PositionTokenAccount).WRITE(),
		solana.Meta(acc.TokenAccountA).WRITE(),
		solana.Meta(acc.TokenAccountB).WRITE(),
		solana.Meta(acc.TokenVaultA).WRITE(),
		solana.Meta(acc.TokenVaultB).WRITE(),
		solana.Meta(acc.TickArrayLower).WRITE(),
		solana.Meta(acc.TickArrayUpper).WRITE(),
		solana.Meta(IncoLightningID),
		solana.Meta(acc.WhirlpoolProgram),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(ID, metas, buf.Bytes()), nil
}

// WithdrawPositionAccounts is the positional account list for
// withdraw_position.
type WithdrawPositionAccounts struct {
	Authority            solana.PublicKey
	VaultConfig          solana.PublicKey
	VaultPDA             solana.PublicKey
	PositionTracker      solana.PublicKey
	Whirlpool            solana.PublicKey
	WhirlpoolPosition    solana.PublicKey
	PositionMint         solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenAccountA        solana.PublicKey
	TokenAccountB        solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
	TickArrayLower       solana.PublicKey
	TickArrayUpper       solana.PublicKey
	WhirlpoolProgram     solana.PublicKey
}

// WithdrawPosition builds the withdraw_position instruction.
func WithdrawPosition(acc WithdrawPositionAccounts, liquidity uint128.Uint128, tokenMinA, tokenMinB uint64, closePosition bool) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator("withdraw_position"))
	enc := bin.NewBorshEncoder(buf)
	if err := writeUint128(enc, liquidity); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(tokenMinA, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(tokenMinB, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBool(closePosition); err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Authority).WRITE().SIGNER(),
		solana.Meta(acc.VaultConfig),
		solana.Meta(acc.VaultPDA).WRITE(),
		solana.Meta(acc.PositionTracker).WRITE(),
		solana.Meta(acc.Whirlpool).WRITE(),
		solana.Meta(acc.WhirlpoolPosition).WRITE(),
		solana.Meta(acc.PositionMint).WRITE(),
		solana.Meta(acc.PositionTokenAccount).WRITE(),
		solana.Meta(acc.TokenAccountA).WRITE(),
		solana.Meta(acc.TokenAccountB).WRITE(),
		solana.Meta(acc.TokenVaultA).WRITE(),
		solana.Meta(acc.TokenVaultB).WRITE(),
		solana.Meta(acc.TickArrayLower).WRITE(),
		solana.Meta(acc.TickArrayUpper).WRITE(),
		solana.Meta(acc.WhirlpoolProgram),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(ID, metas, buf.Bytes()), nil
}

// CollectProfitsAccounts is the positional account list for
// collect_all_profits. Reward accounts are optional; absent ones are
// passed as the program ID per Anchor's convention for Option accounts.
type CollectProfitsAccounts struct {
	Authority            solana.PublicKey
	VaultConfig          solana.PublicKey
	VaultPDA             solana.PublicKey
	PositionTracker      solana.PublicKey
	Whirlpool            solana.PublicKey
	WhirlpoolPosition    solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
	FeeAccountA          solana.PublicKey
	FeeAccountB          solana.PublicKey
	RewardAccounts       [3]solana.PublicKey // zero value = absent
	WhirlpoolProgram     solana.PublicKey
}

// CollectProfits builds the collect_all_profits instruction.
func CollectProfits(acc CollectProfitsAccounts) (solana.Instruction, error) {
	data := Discriminator("collect_all_profits")

	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Authority).WRITE().SIGNER(),
		solana.Meta(acc.VaultConfig),
		solana.Meta(acc.VaultPDA).WRITE(),
		solana.Meta(acc.PositionTracker).WRITE(),
		solana.Meta(acc.Whirlpool),
		solana.Meta(acc.WhirlpoolPosition).WRITE(),
		solana.Meta(acc.PositionTokenAccount),
		solana.Meta(acc.TokenVaultA).WRITE(),
		solana.Meta(acc.TokenVaultB).WRITE(),
		solana.Meta(acc.FeeAccountA).WRITE(),
		solana.Meta(acc.FeeAccountB).WRITE(),
	}
	for _, reward := range acc.RewardAccounts {
		if reward.IsZero() {
			metas = append(metas, solana.Meta(ID))
		} else {
			metas = append(metas, solana.Meta(reward).WRITE())
		}
	}
	metas = append(metas,
		solana.Meta(IncoLightningID),
		solana.Meta(acc.WhirlpoolProgram),
		solana.Meta(solana.TokenProgramID),
	)
	return solana.NewInstruction(ID, metas, data), nil
}

// RebalanceAccounts is the positional account list for
// rebalance_position. The old position set is drained and closed, the
// new set is opened at the new tick range in the same transaction, with
// the vault token accounts holding the funds in between.
type RebalanceAccounts struct {
	Authority       solana.PublicKey
	VaultConfig     solana.PublicKey
	VaultPDA        solana.PublicKey
	PositionTracker solana.PublicKey
	Whirlpool       solana.PublicKey

	OldWhirlpoolPosition    solana.PublicKey
	OldPositionMint         solana.PublicKey
	OldPositionTokenAccount solana.PublicKey
	OldTickArrayLower       solana.PublicKey
	OldTickArrayUpper       solana.PublicKey

	// NewPositionMint is a fresh keypair's public key; the caller
	// co-signs the transaction with it so the mint can be created.
	NewWhirlpoolPosition    solana.PublicKey
	NewPositionMint         solana.PublicKey
	NewPositionTokenAccount solana.PublicKey
	NewTickArrayLower       solana.PublicKey
	NewTickArrayUpper       solana.PublicKey

	VaultTokenA solana.PublicKey
	VaultTokenB solana.PublicKey
	TokenVaultA solana.PublicKey
	TokenVaultB solana.PublicKey

	WhirlpoolProgram solana.PublicKey
}

// RebalancePosition builds the rebalance_position instruction
// (close-then-open against the same tracker).
func RebalancePosition(acc RebalanceAccounts, newTickLower, newTickUpper int32, maxSlippageBps *uint16) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator("rebalance_position"))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteInt32(newTickLower, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteInt32(newTickUpper, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeOptionU16(enc, maxSlippageBps); err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(acc.Authority).WRITE().SIGNER(),
		solana.Meta(acc.VaultConfig),
		solana.Meta(acc.VaultPDA).WRITE(),
		solana.Meta(acc.PositionTracker).WRITE(),
		solana.Meta(acc.Whirlpool),
		solana.Meta(acc.OldWhirlpoolPosition).WRITE(),
		solana.Meta(acc.OldPositionMint).WRITE(),
		solana.Meta(acc.OldPositionTokenAccount).WRITE(),
		solana.Meta(acc.OldTickArrayLower).WRITE(),
		solana.Meta(acc.OldTickArrayUpper).WRITE(),
		solana.Meta(acc.NewWhirlpoolPosition).WRITE(),
		solana.Meta(acc.NewPositionMint).WRITE().SIGNER(),
		solana.Meta(acc.NewPositionTokenAccount).WRITE(),
		solana.Meta(acc.NewTickArrayLower).WRITE(),
		solana.Meta(acc.NewTickArrayUpper).WRITE(),
		solana.Meta(acc.VaultTokenA).WRITE(),
		solana.Meta(acc.VaultTokenB).WRITE(),
		solana.Meta(acc.TokenVaultA).WRITE(),
		solana.Meta(acc.TokenVaultB).WRITE(),
		solana.Meta(acc.WhirlpoolProgram),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SPLAssociatedTokenAccountProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(ID, metas, buf.Bytes()), nil
}

// VerifyDecryption builds the verify_decryption(count, handles[],
// plaintexts[]) instruction. The ed25519 verification instructions must
// precede it in the same transaction or the on-chain check fails closed.
func VerifyDecryption(authority solana.PublicKey, handles []domain.Handle, plaintexts [][domain.HandleSize]byte) (solana.Instruction, error) {
	if len(handles) != len(plaintexts) {
		return nil, fmt.Errorf("%w: %d handles vs %d plaintexts",
			domain.ErrAttestationRejected, len(handles), len(plaintexts))
	}
	if len(handles) == 0 || len(handles) > 255 {
		return nil, fmt.Errorf("%w: handle count %d out of range", domain.ErrAttestationRejected, len(handles))
	}

	buf := new(bytes.Buffer)
	buf.Write(Discriminator("verify_decryption"))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(len(handles))); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(handles)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, h := range handles {
		if _, err := buf.Write(h[:]); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint32(uint32(len(plaintexts)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, p := range plaintexts {
		if _, err := buf.Write(p[:]); err != nil {
			return nil, err
		}
	}

	metas := solana.AccountMetaSlice{
		solana.Meta(authority).SIGNER(),
		solana.Meta(InstructionsSysvarID),
	}
	return solana.NewInstruction(ID, metas, buf.Bytes()), nil
}

func writeUint128(enc *bin.Encoder, v uint128.Uint128) error {
	var b [16]byte
	v.PutBytes(b[:])
	return enc.WriteBytes(b[:], false)
}

func writeOptionU16(enc *bin.Encoder, v *uint16) error {
	if v == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteUint16(*v, binary.LittleEndian)
}
