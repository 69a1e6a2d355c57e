package decode

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DecodeInput decodes a transaction's full input data against one ABI method
// into a value tree. The input must start with the method's 4 byte selector.
func DecodeInput(method *abi.Method, input string) (*Node, error) {
	hexStr := strings.TrimPrefix(input, "0x")
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("input is not valid hex: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("input too short to carry a selector: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], method.ID) {
		return nil, fmt.Errorf("selector 0x%x doesn't match method %s (0x%x)", data[:4], method.Name, method.ID)
	}
	return DecodeArguments(method, data[4:])
}

// DecodeArguments decodes abi-encoded argument bytes (selector already
// stripped) into a tuple node keyed by parameter name.
func DecodeArguments(method *abi.Method, data []byte) (*Node, error) {
	values, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("couldn't unpack arguments of %s: %w", method.Name, err)
	}

	keys := make([]string, len(method.Inputs))
	elems := make([]*Node, len(method.Inputs))
	for i, arg := range method.Inputs {
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		keys[i] = name
		node, err := valueToNode(arg.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("param %s of %s: %w", name, method.Name, err)
		}
		elems[i] = node
	}
	return NewTuple(keys, elems), nil
}

// valueToNode converts one unpacked abi value into a node, walking composite
// types with reflection the way the abi package itself builds them.
func valueToNode(t abi.Type, v interface{}) (*Node, error) {
	switch t.T {
	case abi.TupleTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, fmt.Errorf("expected struct for tuple, got %s", rv.Kind())
		}
		keys := make([]string, len(t.TupleRawNames))
		elems := make([]*Node, len(t.TupleRawNames))
		for i, name := range t.TupleRawNames {
			node, err := valueToNode(*t.TupleElems[i], rv.Field(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("tuple member %s: %w", name, err)
			}
			keys[i] = name
			elems[i] = node
		}
		return NewTuple(keys, elems), nil

	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected slice or array, got %s", rv.Kind())
		}
		elems := make([]*Node, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			node, err := valueToNode(*t.Elem, rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = node
		}
		return NewSeq(elems), nil

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return NewScalar(s), nil

	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return NewScalar(strconv.FormatBool(b)), nil

	case abi.AddressTy:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("expected address, got %T", v)
		}
		return NewScalar(strings.ToLower(addr.Hex())), nil

	case abi.IntTy, abi.UintTy:
		if n, ok := v.(*big.Int); ok {
			return NewNumber(n), nil
		}
		// sized ints come back as native go types
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return NewNumber(big.NewInt(rv.Int())), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return NewNumber(new(big.Int).SetUint64(rv.Uint())), nil
		}
		return nil, fmt.Errorf("expected integer, got %T", v)

	case abi.BytesTy:
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected bytes, got %T", v)
		}
		return NewBytes(raw), nil

	case abi.FixedBytesTy, abi.FunctionTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected byte array, got %s", rv.Kind())
		}
		raw := make([]byte, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			raw[i] = byte(rv.Index(i).Uint())
		}
		return NewBytes(raw), nil

	case abi.HashTy:
		h, ok := v.(common.Hash)
		if !ok {
			return nil, fmt.Errorf("expected hash, got %T", v)
		}
		return NewBytes(h[:]), nil
	}

	return nil, fmt.Errorf("unsupported abi type %s", t.String())
}
