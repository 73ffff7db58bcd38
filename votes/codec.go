// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package votes

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

// CodecVersion is the current version of the vote wire format.
const CodecVersion = 0

// Codec serializes and deserializes votes. All Vote implementations are
// registered here; the type tag written by the codec is what keeps the union
// exhaustive on the wire.
var Codec codec.Manager

func init() {
	Codec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&Backing{}),
		lc.RegisterType(&ApprovalCheck{}),
		lc.RegisterType(&DisputePositive{}),
		lc.RegisterType(&DisputeNegative{}),
		Codec.RegisterCodec(CodecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}

// Bytes returns the serialized form of a vote.
func Bytes(vote Vote) ([]byte, error) {
	return Codec.Marshal(CodecVersion, &vote)
}

// Parse decodes a vote previously serialized with Bytes.
func Parse(b []byte) (Vote, error) {
	var vote Vote
	if _, err := Codec.Unmarshal(b, &vote); err != nil {
		return nil, err
	}
	return vote, nil
}

// Equal reports whether two votes have identical serialized forms. Votes with
// the same validator, candidate and polarity but different payloads are not
// equal.
func Equal(a, b Vote) bool {
	ab, err := Bytes(a)
	if err != nil {
		return false
	}
	bb, err := Bytes(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}
