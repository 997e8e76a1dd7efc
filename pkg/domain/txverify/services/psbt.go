package txverify_services

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// psbtDigest hashes rawPsbt's unsigned transaction, the value the HW grant
// pins so a later-added signature on the same PSBT doesn't invalidate an
// already-issued grant (spec.md §4.9, §9).
func psbtDigest(rawPsbt []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	if err != nil {
		return nil, fmt.Errorf("txverify: parse psbt: %w", err)
	}

	var buf bytes.Buffer
	if err := pkt.UnsignedTx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("txverify: serialize unsigned tx: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}
