package service

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"votechain-backend/models"
)

// OperatorCredentials is the persisted form of the ledger operator key.
type OperatorCredentials struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// ReceiptSigner signs committed receipts with the operator key so audit
// tooling can verify a receipt was produced by this deployment.
type ReceiptSigner struct {
	key *ecdsa.PrivateKey
}

// LoadOrGenerateSigner restores the operator key from dataDir, generating
// and persisting a fresh one on first start.
func LoadOrGenerateSigner(dataDir string) (*ReceiptSigner, error) {
	keyPath := filepath.Join(dataDir, "operator_credentials.json")

	if data, err := os.ReadFile(keyPath); err == nil {
		var creds OperatorCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("failed to parse operator credentials: %w", err)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(creds.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to restore operator key: %w", err)
		}
		return &ReceiptSigner{key: key}, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate operator key: %w", err)
	}

	creds := OperatorCredentials{
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operator credentials: %w", err)
	}
	if err := os.WriteFile(keyPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save operator credentials: %w", err)
	}

	return &ReceiptSigner{key: key}, nil
}

// SignReceipt attaches the operator signature over the transaction hash.
func (rs *ReceiptSigner) SignReceipt(receipt *models.Receipt) error {
	digest := crypto.Keccak256([]byte(receipt.TransactionHash))
	signature, err := crypto.Sign(digest, rs.key)
	if err != nil {
		return fmt.Errorf("failed to sign receipt: %w", err)
	}
	receipt.Signature = hexutil.Encode(signature)
	return nil
}

// VerifyReceiptSignature checks a receipt signature against the operator
// public key.
func (rs *ReceiptSigner) VerifyReceiptSignature(receipt *models.Receipt) bool {
	signature, err := hexutil.Decode(receipt.Signature)
	if err != nil || len(signature) < 64 {
		return false
	}
	digest := crypto.Keccak256([]byte(receipt.TransactionHash))
	return crypto.VerifySignature(
		crypto.FromECDSAPub(&rs.key.PublicKey),
		digest,
		signature[:64],
	)
}

// OperatorAddress returns the operator's address for audit displays.
func (rs *ReceiptSigner) OperatorAddress() string {
	return crypto.PubkeyToAddress(rs.key.PublicKey).Hex()
}
