package program

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// InitializeConfig builds the one-time config initialization instruction.
func InitializeConfig(admin, config solana.PublicKey) solana.Instruction {
	metas := solana.AccountMetaSlice{
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(config).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(ID, metas, Discriminator("initialize_config"))
}

// InitializeVault builds the per-owner vault initialization instruction.
func InitializeVault(owner, vault solana.PublicKey) solana.Instruction {
	metas := solana.AccountMetaSlice{
		solana.Meta(owner).WRITE().SIGNER(),
		solana.Meta(vault).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(ID, metas, Discriminator("initialize_vault"))
}

func adminMetas(admin, config solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(config).WRITE(),
	}
}

// PauseVault builds the emergency pause instruction.
func PauseVault(admin, config solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ID, adminMetas(admin, config), Discriminator("pause_vault"))
}

// UnpauseVault builds the unpause instruction.
func UnpauseVault(admin, config solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ID, adminMetas(admin, config), Discriminator("unpause_vault"))
}

// ProposeAdmin builds step 1 of the two-phase admin rotation.
func ProposeAdmin(admin, config, newAdmin solana.PublicKey) solana.Instruction {
	data := append(Discriminator("propose_admin"), newAdmin.Bytes()...)
	return solana.NewInstruction(ID, adminMetas(admin, config), data)
}

// AcceptAdmin builds step 2; the program rejects it unless the signer
// matches the pending admin.
func AcceptAdmin(newAdmin, config solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ID, adminMetas(newAdmin, config), Discriminator("accept_admin"))
}

// UpdateParams builds the parameter update instruction. Nil fields are
// left unchanged by the program.
func UpdateParams(admin, config solana.PublicKey, maxSlippageBps *uint16, minLiquidity, maxLiquidity *uint128.Uint128) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator("update_params"))
	enc := bin.NewBorshEncoder(buf)
	if err := writeOptionU16(enc, maxSlippageBps); err != nil {
		return nil, err
	}
	for _, opt := range []*uint128.Uint128{minLiquidity, maxLiquidity} {
		if opt == nil {
			if err := enc.WriteUint8(0); err != nil {
				return nil, err
			}
			continue
		}
		if err := enc.WriteUint8(1); err != nil {
			return nil, err
		}
		if err := writeUint128(enc, *opt); err != nil {
			return nil, err
		}
	}
	return solana.NewInstruction(ID, adminMetas(admin, config), buf.Bytes()), nil
}
