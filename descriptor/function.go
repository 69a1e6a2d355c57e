package descriptor

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Param is one node of a function's parameter tree. Tuples and arrays of
// tuples carry their members in Components.
type Param struct {
	Name       string
	Type       string
	Components []*Param
}

// FunctionDescriptor pairs one ABI method with the display format declared
// for it.
type FunctionDescriptor struct {
	Selector  [4]byte
	Signature string
	Name      string
	Payable   bool
	Params    []*Param
	Method    *abi.Method
	Format    *FunctionFormat
}

// SelectorHex renders the selector as a 0x-prefixed string, the form used in
// reports and bucket keys.
func (fd *FunctionDescriptor) SelectorHex() string {
	return fmt.Sprintf("0x%02x%02x%02x%02x", fd.Selector[0], fd.Selector[1], fd.Selector[2], fd.Selector[3])
}

func newParam(name string, t abi.Type) *Param {
	p := &Param{Name: name, Type: t.String()}

	// unwrap arrays to reach tuple members
	elem := &t
	for elem.Elem != nil {
		elem = elem.Elem
	}
	if elem.T == abi.TupleTy {
		p.Components = make([]*Param, len(elem.TupleRawNames))
		for i, memberName := range elem.TupleRawNames {
			p.Components[i] = newParam(memberName, *elem.TupleElems[i])
		}
	}
	return p
}

func newFunctionDescriptor(method *abi.Method, format *FunctionFormat) *FunctionDescriptor {
	fd := &FunctionDescriptor{
		Signature: method.Sig,
		Name:      method.Name,
		Payable:   method.StateMutability == "payable",
		Params:    make([]*Param, len(method.Inputs)),
		Method:    method,
		Format:    format,
	}
	copy(fd.Selector[:], method.ID)
	for i, input := range method.Inputs {
		name := input.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		fd.Params[i] = newParam(name, input.Type)
	}
	return fd
}

// ApplyDefaultToken fills the document-level token address into every
// tokenAmount field that names neither a token nor a tokenPath param.
// Single-token descriptors rely on metadata.token instead of repeating the
// address per field.
func ApplyDefaultToken(meta *Metadata, fds []*FunctionDescriptor) {
	if meta == nil || meta.Token == nil || meta.Token.Address == "" {
		return
	}
	address := strings.ToLower(meta.Token.Address)
	for _, fd := range fds {
		if fd.Format == nil {
			continue
		}
		for i := range fd.Format.Fields {
			field := &fd.Format.Fields[i]
			if field.Format != "tokenAmount" {
				continue
			}
			if field.Params == nil {
				field.Params = map[string]interface{}{}
			}
			if _, ok := field.Params["tokenPath"]; ok {
				continue
			}
			if _, ok := field.Params["token"]; ok {
				continue
			}
			field.Params["token"] = address
		}
	}
}

// BindFormats matches every display format key against the contract ABI and
// returns one FunctionDescriptor per matched function. Keys whose selector
// has no corresponding ABI method are returned separately so the caller can
// surface them without aborting the run.
func BindFormats(contractABI *abi.ABI, display *Display) ([]*FunctionDescriptor, []string, error) {
	if display == nil || len(display.Formats) == 0 {
		return nil, nil, fmt.Errorf("descriptor declares no display formats")
	}

	bySelector := map[[4]byte]*abi.Method{}
	for name := range contractABI.Methods {
		method := contractABI.Methods[name]
		var sel [4]byte
		copy(sel[:], method.ID)
		bySelector[sel] = &method
	}

	descriptors := []*FunctionDescriptor{}
	unmatched := []string{}
	for key, format := range display.Formats {
		sel, err := SelectorFromFormatKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("format key %q: %w", key, err)
		}
		method, ok := bySelector[sel]
		if !ok {
			unmatched = append(unmatched, key)
			continue
		}
		descriptors = append(descriptors, newFunctionDescriptor(method, format))
	}
	return descriptors, unmatched, nil
}
