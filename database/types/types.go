// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// BigInt stores an arbitrary precision integer as a decimal string. Wei
// amounts routinely exceed the range of an int64 column.
//
//nolint:recvcheck
type BigInt struct {
	*big.Int
}

// NewBigInt returns a BigInt holding a copy of v. A nil v is stored as zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{Int: new(big.Int)}
	}
	return BigInt{Int: new(big.Int).Set(v)}
}

// Big returns a copy of the wrapped integer, or zero if unset
func (b BigInt) Big() *big.Int {
	if b.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.Int)
}

func (b BigInt) Value() (driver.Value, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.String(), nil
}

func (b *BigInt) Scan(val any) error {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		b.Int = big.NewInt(v)
		return nil
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmp, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("failed to set big.Int value from string: %s", s)
	}
	b.Int = tmp
	return nil
}

//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
	tmpUint, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

// ErrBlobKeyNotFound is returned by blob operations when a key is missing
var ErrBlobKeyNotFound = errors.New("blob key not found")

// ErrTxnWrongType is returned when a transaction has the wrong type
var ErrTxnWrongType = errors.New("invalid transaction type")

// ErrNilTxn is returned when a nil transaction is provided where a valid transaction is required
var ErrNilTxn = errors.New("nil transaction")

// ErrNoStoreAvailable is returned when no blob or metadata store is available
var ErrNoStoreAvailable = errors.New("no store available")

// Txn is a simple transaction handle for commit/rollback only.
// Database layer (Txn) coordinates metadata and blob operations separately.
type Txn interface {
	Commit() error
	Rollback() error
}

// ReceiptBlob is the CBOR form of an execution receipt kept in the blob store
type ReceiptBlob struct {
	cbor.StructAsArray
	ID         string
	ProposalID uint64
	AssetID    uint64
	Price      []byte
	Status     string
	ExecutedAt int64
}

// NewReceiptBlob builds a receipt blob. price is stored as big-endian bytes.
func NewReceiptBlob(
	id string,
	proposalID uint64,
	assetID uint64,
	price *big.Int,
	status string,
	executedAt time.Time,
) ReceiptBlob {
	var priceBytes []byte
	if price != nil {
		priceBytes = price.Bytes()
	}
	return ReceiptBlob{
		ID:         id,
		ProposalID: proposalID,
		AssetID:    assetID,
		Price:      priceBytes,
		Status:     status,
		ExecutedAt: executedAt.UnixMilli(),
	}
}

// PriceInt returns the receipt price
func (r ReceiptBlob) PriceInt() *big.Int {
	return new(big.Int).SetBytes(r.Price)
}

// Time returns the execution time
func (r ReceiptBlob) Time() time.Time {
	return time.UnixMilli(r.ExecutedAt).UTC()
}

// Encode returns the CBOR encoding of the receipt
func (r *ReceiptBlob) Encode() ([]byte, error) {
	return cbor.Encode(r)
}

// DecodeReceiptBlob decodes a receipt stored by Encode
func DecodeReceiptBlob(data []byte) (*ReceiptBlob, error) {
	var ret ReceiptBlob
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
