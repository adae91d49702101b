package datamodel

import "github.com/satishbabariya/prisma-engines-go/runtime"

var knownScalars = map[ScalarType]bool{
	Int: true, Float: true, Decimal: true, Boolean: true,
	String: true, DateTime: true, JSON: true,
}

var knownFunctions = map[string]bool{
	FuncAutoincrement: true, FuncNow: true, FuncCUID: true, FuncUUID: true,
}

// Validate checks names, types and relations. All problems are collected.
func Validate(dm *Datamodel) error {
	var errs runtime.ValidationErrors

	enums := make(map[string]bool)
	for _, e := range dm.Enums {
		if enums[e.Name] {
			errs.Add(e.Name, "duplicate enum")
		}
		enums[e.Name] = true
		if len(e.Values) == 0 {
			errs.Add(e.Name, "enum has no values")
		}
	}

	models := make(map[string]bool)
	for _, m := range dm.Models {
		if m.Name == "" {
			errs.Add("models", "model without name")
			continue
		}
		if models[m.Name] {
			errs.Add(m.Name, "duplicate model")
		}
		models[m.Name] = true

		fields := make(map[string]bool)
		ids := 0
		for _, f := range m.Fields {
			path := m.Name + "." + f.Name
			if fields[f.Name] {
				errs.Add(path, "duplicate field")
			}
			fields[f.Name] = true
			if f.IsID {
				ids++
				if f.Arity != Required {
					errs.Add(path, "id field must be required")
				}
			}

			switch f.Arity {
			case Required, Optional, List:
			default:
				errs.Add(path, "unknown arity %q", f.Arity)
			}

			switch f.Type.Kind {
			case KindScalar:
				if !knownScalars[f.Type.Scalar] {
					errs.Add(path, "unknown scalar type %q", f.Type.Scalar)
				}
			case KindEnum:
				if !enums[f.Type.Enum] {
					errs.Add(path, "unknown enum %q", f.Type.Enum)
				}
			case KindRelation:
				if f.Type.Relation == nil || f.Type.Relation.To == "" {
					errs.Add(path, "relation field without target model")
				}
			default:
				errs.Add(path, "unknown type kind %q", f.Type.Kind)
			}

			if f.Default != nil && f.Default.Function != "" && !knownFunctions[f.Default.Function] {
				errs.Add(path, "unknown default function %q", f.Default.Function)
			}
		}
		if ids > 1 {
			errs.Add(m.Name, "model has more than one id field")
		}
		if ids == 0 && !m.IsEmbedded {
			errs.Add(m.Name, "model has no id field")
		}
	}

	if err := errs.ErrOrNil(); err != nil {
		return err
	}
	if _, err := CalculateRelations(dm); err != nil {
		return err
	}
	return nil
}
