package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

// Validation binds a validator to the paths it reads, its level and its
// result type. Its identity is derived from those four facts only, so the same
// logical rule keeps its report slot when its messages or the data change.
type Validation struct {
	name     Name
	value    ValueValidator
	list     ListValidator
	paths    []Path
	level    domain.Level
	typ      domain.ResultType
	rowList  Path
	live     bool
	identity string
	defect   error
}

// Field binds a value validator to a single field; the first path is the
// report key.
func Field(v ValueValidator, paths ...Path) Validation {
	val := newValidation(nameOf(v), paths, domain.LevelField, domain.TypeValue)
	val.value = v
	if v == nil {
		val.defect = errors.New("field validation without validator")
	}
	if len(paths) == 0 {
		val.defect = fmt.Errorf("field validation %s binds no path", val.name)
	}
	return val
}

// Record binds a value validator to the whole record. Its result lives under
// domain.RecordKey.
func Record(v ValueValidator, paths ...Path) Validation {
	val := newValidation(nameOf(v), paths, domain.LevelRecord, domain.TypeValue)
	val.value = v
	if v == nil {
		val.defect = errors.New("record validation without validator")
	}
	return val
}

// RecordList binds a list validator to the whole record; it yields one outcome
// per element of the list it targets.
func RecordList(v ListValidator, paths ...Path) Validation {
	var name Name
	if v != nil {
		name = v.Name()
	}
	val := newValidation(name, paths, domain.LevelRecord, domain.TypeList)
	val.list = v
	if v == nil {
		val.defect = errors.New("record list validation without validator")
	}
	return val
}

// Rows applies a value validator once per element of list. Each field path
// must live under list; the validator sees it relative to the element.
func Rows(list Path, v ValueValidator, fields ...Path) Validation {
	paths := append([]Path{list}, fields...)
	val := newValidation(nameOf(v), paths, domain.LevelRow, domain.TypeList)
	val.value = v
	val.rowList = list
	if v == nil {
		val.defect = errors.New("row validation without validator")
	}
	prefix := string(list) + recordpath.Separator
	for _, f := range fields {
		if !strings.HasPrefix(string(f), prefix) {
			val.defect = fmt.Errorf("row validation %s: path %q is outside list %q", val.name, f, list)
		}
	}
	return val
}

// Live marks the validation as requiring a live persistence instance. Live
// validations run after every other validation, only when an instance is
// supplied and no earlier validation produced an ERROR.
func (v Validation) Live() Validation {
	v.live = true
	return v
}

func nameOf(v ValueValidator) Name {
	if v == nil {
		return ""
	}
	return v.Name()
}

func newValidation(name Name, paths []Path, level domain.Level, typ domain.ResultType) Validation {
	cp := append([]Path(nil), paths...)
	val := Validation{
		name:     name,
		paths:    cp,
		level:    level,
		typ:      typ,
		identity: Identity(name, cp, level, typ),
	}
	if name != "" && !name.Known() {
		val.defect = fmt.Errorf("validator name %q is not registered", name)
	}
	return val
}

// Identity hashes the facts that define a validation. Strings are NFC
// normalised so that visually identical paths hash identically.
func Identity(name Name, paths []Path, level domain.Level, typ domain.ResultType) string {
	normalized := make([]string, len(paths))
	for i, p := range paths {
		normalized[i] = norm.NFC.String(string(p))
	}
	payload, _ := json.Marshal(struct {
		Name  string   `json:"name"`
		Paths []string `json:"paths"`
		Level string   `json:"level"`
		Type  string   `json:"type"`
	}{
		Name:  norm.NFC.String(string(name)),
		Paths: normalized,
		Level: string(level),
		Type:  string(typ),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// Name returns the validator name.
func (v Validation) Name() Name { return v.name }

// Identity returns the stable identity hash.
func (v Validation) Identity() string { return v.identity }

// Paths returns the bound paths in declared order.
func (v Validation) Paths() []Path { return append([]Path(nil), v.paths...) }

// Level returns the validation level.
func (v Validation) Level() domain.Level { return v.level }

// Type returns the result type.
func (v Validation) Type() domain.ResultType { return v.typ }

// RequiresInstance reports whether the validation needs a live instance.
func (v Validation) RequiresInstance() bool { return v.live }

// Key returns the report key results are merged under.
func (v Validation) Key() string {
	if v.level == domain.LevelRecord || len(v.paths) == 0 {
		return domain.RecordKey
	}
	return string(v.paths[0])
}

func (v Validation) pathStrings() []string {
	out := make([]string, len(v.paths))
	for i, p := range v.paths {
		out[i] = string(p)
	}
	return out
}

// execute runs the validator and returns its raw outcomes in order.
func (v Validation) execute(ctx context.Context, draft domain.DraftRecord, now time.Time, inst domain.Instance) ([]domain.Outcome, error) {
	base := Input{Record: draft, Scope: draft.Data, Paths: v.pathStrings(), Now: now}
	if v.live {
		base.Instance = inst
	}
	switch {
	case v.level == domain.LevelRow:
		return v.executeRows(ctx, base)
	case v.typ == domain.TypeList:
		return v.list.CheckList(ctx, base)
	default:
		o, err := v.value.Check(ctx, base)
		if err != nil {
			return nil, err
		}
		return []domain.Outcome{o}, nil
	}
}

func (v Validation) executeRows(ctx context.Context, base Input) ([]domain.Outcome, error) {
	rows, _ := recordpath.List(base.Record.Data, string(v.rowList))
	prefix := string(v.rowList) + recordpath.Separator
	rel := make([]string, 0, len(v.paths)-1)
	for _, p := range v.paths[1:] {
		rel = append(rel, strings.TrimPrefix(string(p), prefix))
	}
	ids := RowIDs(rows)
	out := make([]domain.Outcome, 0, len(rows))
	for i, elem := range rows {
		scope, ok := elem.(map[string]any)
		if !ok {
			o := Err("invalid_row", map[string]any{"index": i})
			o.RowID = ids[i]
			out = append(out, o)
			continue
		}
		in := base
		in.Scope = scope
		in.Paths = rel
		o, err := v.value.Check(ctx, in)
		if err != nil {
			return nil, err
		}
		o.RowID = ids[i]
		out = append(out, o)
	}
	return out, nil
}
