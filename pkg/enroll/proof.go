package enroll

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ProofPayload is the fixed payload signed in every address proof.
const ProofPayload = "ton-proof-any"

// ProofRequest is what a signer attests to.
type ProofRequest struct {
	RawAddress string // "<workchain>:<hex hash>"
	Domain     string
	Timestamp  int64
	Payload    string
}

// errBadRawAddress is returned for addresses not in "<wc>:<64 hex>" form.
var errBadRawAddress = errors.New("enroll: invalid raw address")

// Message returns the 32-byte digest a signer signs for r.
//
// The digest is sha256(0xffff || "ton-connect" || sha256(inner)) where inner
// is "ton-proof-item-v2/" || workchain (4 bytes BE) || address hash ||
// domain length (4 bytes LE) || domain || timestamp (8 bytes LE) || payload.
func (r ProofRequest) Message() ([]byte, error) {
	wcPart, hashPart, ok := strings.Cut(r.RawAddress, ":")
	if !ok {
		return nil, errBadRawAddress
	}

	wc, err := strconv.ParseInt(wcPart, 10, 32)
	if err != nil {
		return nil, errBadRawAddress
	}

	addrHash, err := hex.DecodeString(hashPart)
	if err != nil || len(addrHash) != 32 {
		return nil, errBadRawAddress
	}

	inner := []byte("ton-proof-item-v2/")
	inner = binary.BigEndian.AppendUint32(inner, uint32(int32(wc)))
	inner = append(inner, addrHash...)
	inner = binary.LittleEndian.AppendUint32(inner, uint32(len(r.Domain)))
	inner = append(inner, r.Domain...)
	inner = binary.LittleEndian.AppendUint64(inner, uint64(r.Timestamp))
	inner = append(inner, r.Payload...)

	innerSum := sha256.Sum256(inner)

	outer := []byte{0xff, 0xff}
	outer = append(outer, "ton-connect"...)
	outer = append(outer, innerSum[:]...)

	sum := sha256.Sum256(outer)

	return sum[:], nil
}
