package registry

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// DeriveOrganizationID returns the directory key for a registration code:
// keccak256 over the ABI encoding of the code as a single dynamic string
// (offset word, length word, right padded data), hex encoded with 0x.
// The value matches keccak256(abi.encode(code)) computed on chain.
func DeriveOrganizationID(code string) string {
	data := []byte(code)
	padded := (len(data) + 31) / 32 * 32

	buf := make([]byte, 64+padded)
	binary.BigEndian.PutUint64(buf[24:32], 32)
	binary.BigEndian.PutUint64(buf[56:64], uint64(len(data)))
	copy(buf[64:], data)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
