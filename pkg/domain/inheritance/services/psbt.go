package inheritance_services

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

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
		return nil, fmt.Errorf("inheritance: unknown network %s", network)
	}
}

// outputAddresses parses rawPsbt and decodes every output script into a
// Bitcoin address, for the sanctions screen (spec.md §4.8 complete()
// WithPsbt, §4.11).
func outputAddresses(rawPsbt []byte, network account_entities.Network) ([]string, error) {
	params, err := chainParams(network)
	if err != nil {
		return nil, err
	}

	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("inheritance: parse psbt: %w", err)
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

// finalizeAndExtract runs PSBT finalization over every input and returns
// the serialized raw transaction ready to broadcast.
func finalizeAndExtract(rawPsbt []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("inheritance: parse psbt: %w", err)
	}

	for i := range pkt.Inputs {
		if err := psbt.Finalize(pkt, i); err != nil {
			return nil, fmt.Errorf("inheritance: finalize input %d: %w", i, err)
		}
	}

	tx, err := psbt.Extract(pkt)
	if err != nil {
		return nil, fmt.Errorf("inheritance: extract final tx: %w", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("inheritance: serialize final tx: %w", err)
	}

	return buf.Bytes(), nil
}
