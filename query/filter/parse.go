package filter

import (
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-engines-go/query/models"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// scalarSuffixes are tried longest first so `_not_in` wins over `_in`.
var scalarSuffixes = []struct {
	suffix string
	cond   ScalarCondition
}{
	{"_not_starts_with", NotStartsWith},
	{"_not_ends_with", NotEndsWith},
	{"_not_contains", NotContains},
	{"_starts_with", StartsWith},
	{"_ends_with", EndsWith},
	{"_contains", Contains},
	{"_not_in", NotIn},
	{"_in", In},
	{"_not", NotEquals},
	{"_lte", LessThanOrEquals},
	{"_lt", LessThan},
	{"_gte", GreaterThanOrEquals},
	{"_gt", GreaterThan},
}

var listSuffixes = []struct {
	suffix string
	cond   ScalarListCondition
}{
	{"_contains_every", ListContainsEvery},
	{"_contains_some", ListContainsSome},
	{"_contains", ListContains},
}

var relationSuffixes = []struct {
	suffix string
	cond   RelationCondition
}{
	{"_every", EveryRelatedRecord},
	{"_some", AtLeastOneRelatedRecord},
	{"_none", NoRelatedRecord},
	{"_is", ToOneRelatedRecord},
}

// Parse converts a `where` argument of model into a Filter. Keys are field
// names optionally suffixed with a condition (`name_contains`, `age_gte`),
// the logical operators AND, OR and NOT, or relation fields holding
// `{every|some|none|is: ...}`. Every problem is reported in one
// runtime.ValidationErrors.
func Parse(model *models.Model, args map[string]interface{}) (Filter, error) {
	p := &parser{}
	f := p.object(model, args, "where")
	if err := p.errs.ErrOrNil(); err != nil {
		return nil, err
	}
	return f, nil
}

type parser struct {
	errs runtime.ValidationErrors
}

func (p *parser) object(model *models.Model, args map[string]interface{}, path string) Filter {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(And, 0, len(keys))
	for _, key := range keys {
		if f := p.key(model, key, args[key], path+"."+key); f != nil {
			out = append(out, f)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (p *parser) key(model *models.Model, key string, value interface{}, path string) Filter {
	switch key {
	case "AND":
		return And(p.list(model, value, path))
	case "OR":
		return Or(p.list(model, value, path))
	case "NOT":
		return Not(p.list(model, value, path))
	}

	if sf := model.ScalarField(key); sf != nil {
		if sf.IsList {
			p.errs.Add(path, "scalar list field %s needs a _contains, _contains_every or _contains_some condition", key)
			return nil
		}
		return p.scalar(sf, Equals, value, path)
	}
	if rf := model.RelationField(key); rf != nil {
		return p.relation(rf, value, path)
	}

	if name, ok := strings.CutSuffix(key, "_is_null"); ok {
		isNull, isBool := value.(bool)
		if !isBool {
			p.errs.Add(path, "expected a boolean")
			return nil
		}
		var f Filter
		switch {
		case model.ScalarField(name) != nil:
			f = Scalar{Field: model.ScalarField(name), Condition: Equals}
		case model.RelationField(name) != nil && !model.RelationField(name).IsList:
			f = OneRelationIsNull{Field: model.RelationField(name)}
		default:
			p.errs.Add(path, "unknown to-one field %s on model %s", name, model.Name)
			return nil
		}
		if !isNull {
			return Not{f}
		}
		return f
	}

	for _, s := range listSuffixes {
		if name, ok := strings.CutSuffix(key, s.suffix); ok {
			if sf := model.ScalarField(name); sf != nil && sf.IsList {
				return p.scalarList(sf, s.cond, value, path)
			}
		}
	}
	for _, s := range scalarSuffixes {
		if name, ok := strings.CutSuffix(key, s.suffix); ok {
			if sf := model.ScalarField(name); sf != nil && !sf.IsList {
				return p.scalar(sf, s.cond, value, path)
			}
		}
	}
	for _, s := range relationSuffixes {
		if name, ok := strings.CutSuffix(key, s.suffix); ok {
			if rf := model.RelationField(name); rf != nil {
				return p.quantified(rf, s.cond, value, path)
			}
		}
	}

	p.errs.Add(path, "unknown field %s on model %s", key, model.Name)
	return nil
}

// list accepts a single object or a list of objects.
func (p *parser) list(model *models.Model, value interface{}, path string) []Filter {
	switch v := value.(type) {
	case map[string]interface{}:
		return []Filter{p.object(model, v, path)}
	case []interface{}:
		out := make([]Filter, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				p.errs.Add(path, "expected an object, got %T", item)
				continue
			}
			out = append(out, p.object(model, obj, path))
		}
		return out
	}
	p.errs.Add(path, "expected an object or a list of objects, got %T", value)
	return nil
}

func (p *parser) scalar(sf *models.ScalarField, cond ScalarCondition, value interface{}, path string) Filter {
	switch cond {
	case In, NotIn:
		items, ok := value.([]interface{})
		if !ok {
			p.errs.Add(path, "expected a list")
			return nil
		}
		values := make([]interface{}, len(items))
		for i, item := range items {
			c, err := sf.Coerce(item)
			if err != nil {
				p.errs.Add(path, "%v", err)
				return nil
			}
			values[i] = c
		}
		return Scalar{Field: sf, Condition: cond, Values: values}
	case Contains, NotContains, StartsWith, NotStartsWith, EndsWith, NotEndsWith:
		if _, ok := value.(string); !ok {
			p.errs.Add(path, "expected a string")
			return nil
		}
		return Scalar{Field: sf, Condition: cond, Value: value}
	}

	c, err := sf.Coerce(value)
	if err != nil {
		p.errs.Add(path, "%v", err)
		return nil
	}
	return Scalar{Field: sf, Condition: cond, Value: c}
}

func (p *parser) scalarList(sf *models.ScalarField, cond ScalarListCondition, value interface{}, path string) Filter {
	if cond == ListContains {
		value = []interface{}{value}
	}
	values, err := sf.CoerceAll(value)
	if err != nil {
		p.errs.Add(path, "%v", err)
		return nil
	}
	return ScalarList{Field: sf, Condition: cond, Values: values}
}

// relation parses `rel: {every|some|none|is: ...}`. A to-one field also
// accepts a plain nested filter, or null for "no related record".
func (p *parser) relation(rf *models.RelationField, value interface{}, path string) Filter {
	if value == nil {
		if rf.IsList {
			p.errs.Add(path, "list relation %s cannot be null", rf.Name)
			return nil
		}
		return OneRelationIsNull{Field: rf}
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		p.errs.Add(path, "expected an object, got %T", value)
		return nil
	}

	var (
		out        And
		quantified int
	)
	for _, s := range relationSuffixes {
		q := strings.TrimPrefix(s.suffix, "_")
		nested, ok := obj[q]
		if !ok {
			continue
		}
		quantified++
		if f := p.quantified(rf, s.cond, nested, path+"."+q); f != nil {
			out = append(out, f)
		}
	}
	if quantified > 0 {
		if quantified != len(obj) {
			p.errs.Add(path, "relation filters accept only every, some, none and is")
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	}

	if rf.IsList {
		p.errs.Add(path, "list relation %s needs every, some or none", rf.Name)
		return nil
	}
	return Relation{Field: rf, Condition: ToOneRelatedRecord, Nested: p.object(rf.RelatedModel(), obj, path)}
}

func (p *parser) quantified(rf *models.RelationField, cond RelationCondition, value interface{}, path string) Filter {
	if rf.IsList == (cond == ToOneRelatedRecord) {
		p.errs.Add(path, "condition %s does not apply to relation %s", cond, rf.Name)
		return nil
	}
	if value == nil {
		if cond != ToOneRelatedRecord {
			p.errs.Add(path, "expected an object")
			return nil
		}
		return OneRelationIsNull{Field: rf}
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		p.errs.Add(path, "expected an object, got %T", value)
		return nil
	}
	return Relation{Field: rf, Condition: cond, Nested: p.object(rf.RelatedModel(), obj, path)}
}
