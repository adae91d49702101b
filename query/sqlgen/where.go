package sqlgen

// condition writes c. Compound conditions are parenthesized so the output
// never depends on operator precedence.
func (w *writer) condition(c Condition) {
	switch v := c.(type) {
	case nil, NoCondition:
		w.write("1=1")

	case BoolLit:
		if v {
			w.write("1=1")
		} else {
			w.write("1=0")
		}

	case And:
		parts := make([]Condition, 0, len(v))
		for _, p := range v {
			if _, ok := p.(NoCondition); ok || p == nil {
				continue
			}
			parts = append(parts, p)
		}
		switch len(parts) {
		case 0:
			w.write("1=1")
		case 1:
			w.condition(parts[0])
		default:
			w.join(parts, " AND ")
		}

	case Or:
		switch len(v) {
		case 0:
			w.write("1=0")
		case 1:
			w.condition(v[0])
		default:
			w.join(v, " OR ")
		}

	case Not:
		w.write("NOT (")
		w.condition(v.Cond)
		w.write(")")

	case Compare:
		w.column(v.Column)
		w.write(" ", v.Op, " ")
		w.bind(v.Value)

	case CompareColumns:
		w.column(v.Left)
		w.write(" ", v.Op, " ")
		w.column(v.Right)

	case IsNull:
		w.column(v.Column)
		if v.Negated {
			w.write(" IS NOT NULL")
		} else {
			w.write(" IS NULL")
		}

	case In:
		if len(v.Values) == 0 {
			w.condition(BoolLit(v.Negated))
			return
		}
		w.column(v.Column)
		if v.Negated {
			w.write(" NOT")
		}
		w.write(" IN (")
		for i, val := range v.Values {
			if i > 0 {
				w.write(", ")
			}
			w.bind(val)
		}
		w.write(")")

	case InSelect:
		w.column(v.Column)
		if v.Negated {
			w.write(" NOT")
		}
		w.write(" IN (")
		w.selectStmt(v.Select)
		w.write(")")

	case Like:
		w.column(v.Column)
		if v.Negated {
			w.write(" NOT")
		}
		w.write(" LIKE ")
		w.bind(v.Pattern)
		if v.Escaped {
			w.write(" ESCAPE '", LikeEscape, "'")
		}

	case IsNotTrue:
		w.write("(")
		w.condition(v.Cond)
		w.write(") IS NOT TRUE")
	}
}

func (w *writer) join(parts []Condition, op string) {
	w.write("(")
	for i, p := range parts {
		if i > 0 {
			w.write(op)
		}
		w.condition(p)
	}
	w.write(")")
}
