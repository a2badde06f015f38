package index

import (
	"encoding/json"
	"fmt"

	"github.com/dunitrust/dunitrust/crypto"
)

// Durable key prefixes. Each row is stored once under a prefix + a
// disambiguating suffix so range scans over store.Database stay cheap;
// the in-memory Snapshot is the query path spec.md §4.5 actually
// describes. Writer writes every row under these keys but never reads them
// back: NewWriter always starts from an empty index set, so state applied
// before a restart is not reloaded.
const (
	prefixIIndex = "iindex/"
	prefixMIndex = "mindex/"
	prefixCIndex = "cindex/"
	prefixSIndex = "sindex/"
	prefixBIndex = "bindex/"
)

func iindexKey(r IIndexRow) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", prefixIIndex, crypto.Base58Encode(r.Pubkey), r.WrittenOn))
}

func mindexKey(r MIndexRow) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", prefixMIndex, crypto.Base58Encode(r.Pubkey), r.WrittenOn))
}

func cindexKey(r CIndexRow) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%010d", prefixCIndex,
		crypto.Base58Encode(r.Issuer), crypto.Base58Encode(r.Receiver), r.WrittenOn))
}

func sindexKey(r SIndexRow) []byte {
	if r.Kind == SourceUD {
		return []byte(fmt.Sprintf("%sUD/%s/%d", prefixSIndex, crypto.Base58Encode(r.DUPubkey), r.DUBlock))
	}
	return []byte(fmt.Sprintf("%sTX/%s/%d", prefixSIndex, r.TxHash.HexUpper(), r.OutputIndex))
}

func bindexKey(r BIndexRow) []byte {
	return []byte(fmt.Sprintf("%s%010d", prefixBIndex, r.Number))
}

func encodeRow(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("index: row is not marshalable: %v", err))
	}
	return b
}
