package mobilepay_services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	crypto "github.com/coldkeep/custody-api/pkg/infra/crypto"
)

// hexEncode renders a finalized transaction for API responses.
func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// parsePacket re-parses the HSM's co-signed PSBT bytes for finalization.
func parsePacket(rawPsbt []byte) (*psbt.Packet, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("mobilepay: parse co-signed psbt: %w", err)
	}
	return pkt, nil
}

// localDate computes an account's local calendar date string for the daily
// spend ledger key (spec.md §4.10). A nil limit (no spending limit ever
// configured) falls back to UTC.
func localDate(now time.Time, limit *account_entities.SpendingLimit) string {
	offset := 0.0
	if limit != nil {
		offset = limit.TimeZoneOffset
	}
	return now.Add(time.Duration(offset * float64(time.Hour))).UTC().Format("2006-01-02")
}

func chainParams(network account_entities.Network) (*chaincfg.Params, error) {
	switch network {
	case account_entities.NetworkBitcoin:
		return &chaincfg.MainNetParams, nil
	case account_entities.NetworkTestnet:
		return &chaincfg.TestNet3Params, nil
	case account_entities.NetworkSignet:
		return &chaincfg.SigNetParams, nil
	case account_entities.NetworkRegtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("mobilepay: unknown network %s", network)
	}
}

// psbtDigest hashes the unsigned transaction, matching the binding
// pkg/domain/txverify uses so a supplied grant can be checked against the
// exact PSBT being signed (spec.md §9 open question).
func psbtDigest(rawPsbt []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("mobilepay: parse psbt: %w", err)
	}

	var buf bytes.Buffer
	if err := pkt.UnsignedTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("mobilepay: serialize unsigned tx: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

// verifySingleAppSignature enforces spec.md §4.10 step 4: every input has
// exactly one partial signature, and it verifies under appPubKey. Returns
// the parsed packet for the caller's subsequent net-send and finalization
// steps, so the PSBT is only ever parsed once.
func verifySingleAppSignature(rawPsbt []byte, appPubKey []byte) (*psbt.Packet, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("mobilepay: parse psbt: %w", err)
	}

	for i, in := range pkt.Inputs {
		if len(in.PartialSigs) != 1 {
			return nil, fmt.Errorf("mobilepay: input %d: PSBT not signed by exactly one known app key", i)
		}

		sig := in.PartialSigs[0]
		if !bytes.Equal(sig.PubKey, appPubKey) {
			return nil, fmt.Errorf("mobilepay: input %d: PSBT not signed by exactly one known app key", i)
		}

		sigDER := sig.Signature
		if len(sigDER) > 0 {
			// Bitcoin partial sigs carry a trailing sighash-type byte the raw
			// DER parser doesn't expect.
			sigDER = sigDER[:len(sigDER)-1]
		}

		sighash := inputSighashPreimage(pkt, i)
		ok, err := crypto.VerifyDER(appPubKey, sighash, sigDER)
		if err != nil || !ok {
			return nil, fmt.Errorf("mobilepay: input %d: PSBT not signed by exactly one known app key", i)
		}
	}

	return pkt, nil
}

// inputSighashPreimage is a stand-in for the consensus sighash algorithm
// (legacy vs segwit v0 vs taproot differ and aren't reimplemented here,
// consistent with Bitcoin-consensus implementation being out of scope): it
// binds the signature check to this specific unsigned transaction and input
// index rather than to an arbitrary message, so a signature lifted from a
// different PSBT can't pass.
func inputSighashPreimage(pkt *psbt.Packet, index int) []byte {
	var buf bytes.Buffer
	_ = pkt.UnsignedTx.Serialize(&buf)
	buf.WriteByte(byte(index))
	return buf.Bytes()
}

// netSendSats sums every output that doesn't carry BIP32 derivation info
// proving it belongs to the signing wallet itself: a PSBT's own change
// outputs are annotated with the wallet's derivation path, so anything
// without one is a send to a foreign script (spec.md §4.10 step 5).
func netSendSats(pkt *psbt.Packet) int64 {
	var total int64
	for i, out := range pkt.Outputs {
		if len(out.Bip32Derivation) > 0 || len(out.TaprootBip32Derivation) > 0 {
			continue
		}
		total += pkt.UnsignedTx.TxOut[i].Value
	}
	return total
}

// outputAddresses decodes every output script into a Bitcoin address for
// the sanctions screen (spec.md §4.10 step 8, §4.11).
func outputAddresses(pkt *psbt.Packet, network account_entities.Network) ([]string, error) {
	params, err := chainParams(network)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(pkt.UnsignedTx.TxOut))
	for _, out := range pkt.UnsignedTx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params)
		if err != nil || len(addrs) == 0 {
			continue
		}
		addresses = append(addresses, addrs[0].EncodeAddress())
	}

	return addresses, nil
}

// feeRateSatsPerVByte estimates the fee rate from WitnessUtxo input values,
// when present, for the fee-rate sanity check. Returns ok=false when an
// input lacks WitnessUtxo (legacy input without segwit info supplied),
// since the fee can't be computed without the spent amount.
func feeRateSatsPerVByte(pkt *psbt.Packet) (rate float64, ok bool) {
	var inTotal, outTotal int64
	for _, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			return 0, false
		}
		inTotal += in.WitnessUtxo.Value
	}
	for _, out := range pkt.UnsignedTx.TxOut {
		outTotal += out.Value
	}

	fee := inTotal - outTotal
	if fee < 0 {
		return 0, false
	}

	vsize := pkt.UnsignedTx.SerializeSizeStripped()
	if vsize == 0 {
		return 0, false
	}

	return float64(fee) / float64(vsize), true
}

// finalizeAndExtract runs PSBT finalization over every input (the server's
// co-signature having just been merged in) and returns the serialized raw
// transaction ready to broadcast.
func finalizeAndExtract(pkt *psbt.Packet) ([]byte, string, error) {
	for i := range pkt.Inputs {
		if err := psbt.Finalize(pkt, i); err != nil {
			return nil, "", fmt.Errorf("mobilepay: finalize input %d: %w", i, err)
		}
	}

	tx, err := psbt.Extract(pkt)
	if err != nil {
		return nil, "", fmt.Errorf("mobilepay: extract final tx: %w", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, "", fmt.Errorf("mobilepay: serialize final tx: %w", err)
	}

	return buf.Bytes(), tx.TxHash().String(), nil
}
