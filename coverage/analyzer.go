package coverage

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/decode"
	"github.com/tranvictor/clearsign/descriptor"
	"github.com/tranvictor/clearsign/fieldpath"
	"github.com/tranvictor/clearsign/loader"
	"github.com/tranvictor/clearsign/tokens"
)

// ResolvedField is one cell of the per-sample value matrix: what a display
// field showed for one transaction, or why it couldn't.
type ResolvedField struct {
	Path   string
	Label  string
	Value  string
	OK     bool
	Reason string
}

type SampleReport struct {
	TxHash         string
	BlockNumber    uint64
	ReceiptMissing bool
	EventCount     int
	Fields         []ResolvedField
}

// FunctionReport is the full coverage result for one function selector.
type FunctionReport struct {
	Selector    string
	Signature   string
	Name        string
	Intent      string
	State       State
	NoData      bool
	SampleCount int
	Findings    []Finding
	Samples     []SampleReport
}

type Analyzer struct {
	rules  RuleSet
	logger *zap.Logger
}

func NewAnalyzer(rules RuleSet, logger *zap.Logger) *Analyzer {
	return &Analyzer{rules: rules, logger: logger}
}

type parsedField struct {
	decl descriptor.DisplayField
	path *fieldpath.Path
	perr *fieldpath.ResolveError
}

// Analyze produces the coverage report for one function. It never fails:
// structural problems become findings, missing data becomes the no-data
// marker, and the report always comes back complete.
func (a *Analyzer) Analyze(fd *descriptor.FunctionDescriptor, samples []*loader.Sample) *FunctionReport {
	report := &FunctionReport{
		Selector:    fd.SelectorHex(),
		Signature:   fd.Signature,
		Name:        fd.Name,
		State:       Pending,
		SampleCount: len(samples),
	}
	if fd.Format != nil {
		report.Intent = fd.Format.Intent
	}

	seen := map[string]bool{}
	emit := func(f Finding) {
		key := fmt.Sprintf("%d|%s", f.Kind, f.Path)
		if seen[key] {
			return
		}
		seen[key] = true
		report.Findings = append(report.Findings, f)
	}

	fields := a.parseFields(fd, emit)
	fieldKeys := map[string]bool{}
	for _, pf := range fields {
		if pf.path != nil {
			fieldKeys[canonicalKey(pf.path)] = true
		}
	}

	a.checkExcluded(fd, fieldKeys, emit)

	if len(samples) == 0 {
		// static findings still stand, but Pending plus the marker keeps
		// "no data" distinct from "no issues found"
		report.NoData = true
		a.checkRequired(fd, fieldKeys, nil, emit)
		a.checkHiddenParams(fd, fields, emit)
		return report
	}
	report.State = Sampled

	resolvedAny := map[string]bool{}
	for _, sample := range samples {
		report.Samples = append(report.Samples, a.resolveSample(fields, sample, resolvedAny, emit))
	}
	report.State = Resolved

	a.checkRequired(fd, fieldKeys, resolvedAny, emit)
	a.checkHiddenParams(fd, fields, emit)
	a.checkNativeValue(fd, fields, samples, emit)
	a.checkTokenDirection(fields, samples, emit)

	report.State = Reported
	a.logger.Debug("function analyzed",
		zap.String("selector", report.Selector),
		zap.String("function", report.Name),
		zap.Int("samples", report.SampleCount),
		zap.Int("findings", len(report.Findings)),
	)
	return report
}

func (a *Analyzer) parseFields(fd *descriptor.FunctionDescriptor, emit func(Finding)) []parsedField {
	if fd.Format == nil {
		return nil
	}
	fields := make([]parsedField, 0, len(fd.Format.Fields))
	for _, decl := range fd.Format.Fields {
		pf := parsedField{decl: decl}
		pf.path, pf.perr = fieldpath.Parse(decl.Path)
		if pf.perr != nil {
			emit(Finding{
				Kind:     BrokenPath,
				Severity: SeverityError,
				Path:     decl.Path,
				Detail:   pf.perr.Detail,
			})
		}
		fields = append(fields, pf)
	}
	return fields
}

// resolveSample fills one row of the value matrix and converts resolution
// failures into findings with the sample as evidence.
func (a *Analyzer) resolveSample(fields []parsedField, sample *loader.Sample, resolvedAny map[string]bool, emit func(Finding)) SampleReport {
	row := SampleReport{
		TxHash:         sample.Context.Hash,
		BlockNumber:    sample.Context.BlockNumber,
		ReceiptMissing: sample.ReceiptMissing,
		EventCount:     len(sample.Events),
	}

	for _, pf := range fields {
		cell := ResolvedField{Path: pf.decl.Path, Label: pf.decl.Label}
		if pf.perr != nil {
			cell.Reason = pf.perr.Detail
			row.Fields = append(row.Fields, cell)
			continue
		}

		value, rerr := fieldpath.Resolve(pf.path, sample.Tree, &sample.Context)
		if rerr != nil {
			cell.Reason = rerr.Detail
			emit(Finding{
				Kind:     findingKindFor(rerr.Reason),
				Severity: SeverityError,
				Path:     pf.decl.Path,
				Detail:   rerr.Detail,
				TxHash:   sample.Context.Hash,
			})
		} else {
			cell.OK = true
			cell.Value = value.Display()
			resolvedAny[canonicalKey(pf.path)] = true
		}
		row.Fields = append(row.Fields, cell)
	}
	return row
}

func findingKindFor(reason fieldpath.Reason) FindingKind {
	if reason == fieldpath.OutOfBounds {
		return OutOfBoundsIndex
	}
	return BrokenPath
}

// checkRequired enforces the descriptor's required list: every required
// path must be declared as a field, and must resolve on at least one sample
// when samples exist.
func (a *Analyzer) checkRequired(fd *descriptor.FunctionDescriptor, fieldKeys map[string]bool, resolvedAny map[string]bool, emit func(Finding)) {
	if fd.Format == nil {
		return
	}
	for _, required := range fd.Format.Required {
		p, perr := fieldpath.Parse(required)
		if perr != nil {
			emit(Finding{
				Kind:     RequiredMissing,
				Severity: SeverityError,
				Path:     required,
				Detail:   "required path is malformed: " + perr.Detail,
			})
			continue
		}
		key := canonicalKey(p)
		if !fieldKeys[key] {
			emit(Finding{
				Kind:     RequiredMissing,
				Severity: SeverityError,
				Path:     required,
				Detail:   "required path is not among the displayed fields",
			})
			continue
		}
		if resolvedAny != nil && !resolvedAny[key] {
			emit(Finding{
				Kind:     RequiredMissing,
				Severity: SeverityError,
				Path:     required,
				Detail:   "required path never resolved on any sample",
			})
		}
	}
}

// checkExcluded flags paths that the descriptor both excludes and displays.
// This is a warning: the display wins, but the descriptor contradicts
// itself.
func (a *Analyzer) checkExcluded(fd *descriptor.FunctionDescriptor, fieldKeys map[string]bool, emit func(Finding)) {
	if fd.Format == nil {
		return
	}
	for _, excluded := range fd.Format.Excluded {
		p, perr := fieldpath.Parse(excluded)
		if perr != nil {
			continue
		}
		if fieldKeys[canonicalKey(p)] {
			emit(Finding{
				Kind:     ExcludedPresent,
				Severity: SeverityWarning,
				Path:     excluded,
				Detail:   "path is excluded but also declared as a display field",
			})
		}
	}
}

// checkHiddenParams walks the abi parameter tree and flags every subtree no
// display field reaches. A fully hidden tuple yields one finding at its
// root rather than one per leaf.
func (a *Analyzer) checkHiddenParams(fd *descriptor.FunctionDescriptor, fields []parsedField, emit func(Finding)) {
	referenced := [][]string{}
	for _, pf := range fields {
		if pf.path == nil || pf.path.IsContainer() {
			continue
		}
		referenced = append(referenced, fieldNameChain(pf.path))
		// tokenPath params reference parameters too
		if tokenPath, ok := tokenPathParam(pf.decl); ok {
			if tp, perr := fieldpath.Parse(tokenPath); perr == nil && !tp.IsContainer() {
				referenced = append(referenced, fieldNameChain(tp))
			}
		}
	}

	excluded := [][]string{}
	if fd.Format != nil {
		for _, ex := range fd.Format.Excluded {
			if p, perr := fieldpath.Parse(ex); perr == nil && !p.IsContainer() {
				excluded = append(excluded, fieldNameChain(p))
			}
		}
	}

	for _, param := range fd.Params {
		a.walkHidden(param, []string{param.Name}, referenced, excluded, emit)
	}
}

func (a *Analyzer) walkHidden(param *descriptor.Param, chain []string, referenced, excluded [][]string, emit func(Finding)) {
	if chainCovered(chain, excluded) {
		return
	}
	if !chainTouched(chain, referenced) {
		emit(Finding{
			Kind:     HiddenParameter,
			Severity: SeverityError,
			Path:     strings.Join(chain, "."),
			Detail:   fmt.Sprintf("parameter of type %s is never displayed", param.Type),
		})
		return
	}
	for _, member := range param.Components {
		a.walkHidden(member, append(append([]string{}, chain...), member.Name), referenced, excluded, emit)
	}
}

// chainTouched reports whether any referenced path enters this subtree.
func chainTouched(chain []string, referenced [][]string) bool {
	for _, r := range referenced {
		if isPrefix(chain, r) || isPrefix(r, chain) {
			return true
		}
	}
	return false
}

// chainCovered reports whether the chain or one of its ancestors is listed.
func chainCovered(chain []string, listed [][]string) bool {
	for _, l := range listed {
		if isPrefix(l, chain) {
			return true
		}
	}
	return false
}

func isPrefix(prefix, chain []string) bool {
	if len(prefix) > len(chain) {
		return false
	}
	for i := range prefix {
		if prefix[i] != chain[i] {
			return false
		}
	}
	return true
}

// checkNativeValue flags native currency moving without disclosure. The
// native amount counts as disclosed by a @.value field, or by a tokenAmount
// field whose token is the native sentinel, the usual descriptor idiom for
// payable swaps. The wrapping allowlist suppresses the finding entirely.
func (a *Analyzer) checkNativeValue(fd *descriptor.FunctionDescriptor, fields []parsedField, samples []*loader.Sample, emit func(Finding)) {
	for _, pf := range fields {
		if pf.path != nil && pf.path.IsContainer() && pf.path.ContainerName() == "value" {
			return
		}
	}
	if a.rules.AllowsNativeWrapping(fd.Name) {
		return
	}
	for _, sample := range samples {
		if sample.Context.Value == nil || sample.Context.Value.Sign() == 0 {
			continue
		}
		if nativeDisclosedByToken(fields, sample) {
			continue
		}
		emit(Finding{
			Kind:     NativeAmountUndisclosed,
			Severity: SeverityError,
			Path:     "@.value",
			Detail:   fmt.Sprintf("transaction moved %s wei of native currency but no field displays @.value", sample.Context.Value),
			TxHash:   sample.Context.Hash,
		})
		return
	}
}

// nativeDisclosedByToken reports whether any tokenAmount field labels the
// native sentinel for this sample, either through a constant token param or
// by resolving its tokenPath.
func nativeDisclosedByToken(fields []parsedField, sample *loader.Sample) bool {
	for _, pf := range fields {
		if addr, ok := tokenAddressParam(pf.decl); ok && addr == tokens.NativeSentinel {
			return true
		}
		tokenPath, ok := tokenPathParam(pf.decl)
		if !ok {
			continue
		}
		tp, perr := fieldpath.Parse(tokenPath)
		if perr != nil {
			continue
		}
		value, rerr := fieldpath.Resolve(tp, sample.Tree, &sample.Context)
		if rerr != nil {
			continue
		}
		if addressFromNode(value) == tokens.NativeSentinel {
			return true
		}
	}
	return false
}

// checkTokenDirection is the advisory heuristic: a tokenAmount field whose
// tokenPath resolves to a token that none of the sample's transfers touch
// probably labels the wrong leg of the trade. Multi-hop and wrapped-asset
// routes can trip this legitimately, hence advisory severity.
func (a *Analyzer) checkTokenDirection(fields []parsedField, samples []*loader.Sample, emit func(Finding)) {
	for _, pf := range fields {
		tokenPath, ok := tokenPathParam(pf.decl)
		if !ok {
			continue
		}
		tp, perr := fieldpath.Parse(tokenPath)
		if perr != nil {
			continue
		}

		for _, sample := range samples {
			if sample.ReceiptMissing || len(sample.Events) == 0 {
				continue
			}
			value, rerr := fieldpath.Resolve(tp, sample.Tree, &sample.Context)
			if rerr != nil {
				continue
			}
			labeled := addressFromNode(value)
			if labeled == "" || labeled == tokens.NativeSentinel {
				continue
			}

			observed := map[string]bool{}
			anyTransfer := false
			for _, ev := range sample.Events {
				if ev.Token != "" {
					observed[ev.Token] = true
					anyTransfer = true
				}
			}
			if anyTransfer && !observed[labeled] {
				emit(Finding{
					Kind:     TokenDirectionMismatch,
					Severity: SeverityAdvisory,
					Path:     pf.decl.Path,
					Detail:   fmt.Sprintf("field labels token %s but no observed transfer touches it", labeled),
					TxHash:   sample.Context.Hash,
				})
				break
			}
		}
	}
}

func tokenPathParam(decl descriptor.DisplayField) (string, bool) {
	if decl.Format != "tokenAmount" || decl.Params == nil {
		return "", false
	}
	tokenPath, ok := decl.Params["tokenPath"].(string)
	return tokenPath, ok && tokenPath != ""
}

// tokenAddressParam extracts a constant token address from a tokenAmount
// field, set either directly in the descriptor or filled in from the
// document-level token metadata.
func tokenAddressParam(decl descriptor.DisplayField) (string, bool) {
	if decl.Format != "tokenAmount" || decl.Params == nil {
		return "", false
	}
	addr, ok := decl.Params["token"].(string)
	return strings.ToLower(addr), ok && addr != ""
}

func addressFromNode(n *decode.Node) string {
	switch n.Kind {
	case decode.Scalar:
		s := strings.ToLower(n.Str)
		if strings.HasPrefix(s, "0x") && len(s) == 42 {
			return s
		}
	case decode.Bytes:
		if len(n.Raw) == 20 {
			return fmt.Sprintf("0x%x", n.Raw)
		}
	}
	return ""
}

func fieldNameChain(p *fieldpath.Path) []string {
	chain := []string{}
	for _, seg := range p.Segments {
		if seg.Kind == fieldpath.Field {
			chain = append(chain, seg.Name)
		}
	}
	return chain
}

// canonicalKey renders a parsed path in a spelling-independent form so that
// "#.params.x" and "params.x" compare equal across fields, required and
// excluded lists.
func canonicalKey(p *fieldpath.Path) string {
	var b strings.Builder
	for i, seg := range p.Segments {
		switch seg.Kind {
		case fieldpath.Container:
			b.WriteString("@." + seg.Name)
		case fieldpath.Field:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Name)
		case fieldpath.Index:
			b.WriteString("[" + strconv.Itoa(seg.Idx) + "]")
		case fieldpath.Slice:
			b.WriteByte('[')
			if seg.Start != nil {
				b.WriteString(strconv.Itoa(*seg.Start))
			}
			b.WriteByte(':')
			if seg.End != nil {
				b.WriteString(strconv.Itoa(*seg.End))
			}
			b.WriteByte(']')
		}
	}
	return b.String()
}
